package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err    error
		want   ErrorKind
		domain bool
	}{
		{nil, KindUnknown, false},
		{errors.New("boom"), KindUnknown, false},
		{Validationf("bad %s", "input"), KindValidation, true},
		{NotFoundf("item %d", 1), KindNotFound, true},
		{fmt.Errorf("receive: %w", ErrInvalidState), KindState, true},
		{ErrDuplicateRequest, KindState, true},
		{fmt.Errorf("adjust: %w", ErrInvalidAdjustment), KindIntegrity, true},
		{ErrInsufficientReturnable, KindIntegrity, true},
		{fmt.Errorf("%w: step 2: %w", ErrTransactionFailed, errors.New("conn reset")), KindTransaction, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "%v", tt.err)
		assert.Equal(t, tt.domain, IsDomain(tt.err), "%v", tt.err)
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "integrity", KindIntegrity.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
