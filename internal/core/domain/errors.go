package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a workflow wraps exactly one of
// these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrState             = errors.New("illegal state transition")
	ErrIntegrity         = errors.New("ledger integrity violation")
	ErrNotFound          = errors.New("not found")
	ErrTransactionFailed = errors.New("transaction failed, no partial effect")
)

var (
	ErrInvalidAdjustment      = fmt.Errorf("%w: adjustment would drive quantity negative", ErrIntegrity)
	ErrInsufficientReturnable = fmt.Errorf("%w: return exceeds returnable quantity", ErrIntegrity)
	ErrNegativeOutstanding    = fmt.Errorf("%w: outstanding amount would go negative", ErrIntegrity)
	ErrInvalidState           = fmt.Errorf("%w: operation not allowed in current status", ErrState)
	ErrDuplicateRequest       = fmt.Errorf("%w: duplicate request", ErrState)
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindState
	KindIntegrity
	KindNotFound
	KindTransaction
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	case KindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrState):
		return KindState
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransactionFailed):
		return KindTransaction
	default:
		return KindUnknown
	}
}

// IsDomain reports whether err carries a business classification rather than
// an infrastructure failure.
func IsDomain(err error) bool {
	switch Kind(err) {
	case KindValidation, KindState, KindIntegrity, KindNotFound:
		return true
	}
	return false
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
