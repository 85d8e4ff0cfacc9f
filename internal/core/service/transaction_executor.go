package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

var tracer = otel.Tracer("github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service")

// Operation is one step of a transaction. It must only touch the store
// through the session it is given.
type Operation func(ctx context.Context, s port.Session) error

type TransactionExecutor struct {
	store   port.Store
	metrics *Metrics
	log     logrus.FieldLogger
}

func NewTransactionExecutor(store port.Store, metrics *Metrics, log logrus.FieldLogger) *TransactionExecutor {
	return &TransactionExecutor{
		store:   store,
		metrics: metrics,
		log:     orDiscard(log),
	}
}

// Execute runs ops in order inside one transaction. Either every op takes
// effect or none does. Domain errors raised by an op are returned as is;
// anything else is reported as domain.ErrTransactionFailed.
func (e *TransactionExecutor) Execute(ctx context.Context, name string, ops ...Operation) (err error) {
	ctx, span := tracer.Start(ctx, "tx."+name)
	span.SetAttributes(attribute.Int("tx.ops", len(ops)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.observeTransaction(name, err)
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransactionFailed, err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrTransactionFailed, err)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			e.rollback(tx, name)
			return fmt.Errorf("%w: step %d: %w", domain.ErrTransactionFailed, i, err)
		}
		if err := op(ctx, tx); err != nil {
			e.rollback(tx, name)
			if domain.IsDomain(err) {
				return err
			}
			e.log.WithFields(logrus.Fields{
				"tx":   name,
				"step": i,
			}).WithError(err).Error("TX:FAILED")
			return fmt.Errorf("%w: step %d: %w", domain.ErrTransactionFailed, i, err)
		}
	}

	// a failed commit has already discarded the transaction
	if err := tx.Commit(); err != nil {
		e.log.WithField("tx", name).WithError(err).Error("TX:COMMIT_FAILED")
		return fmt.Errorf("%w: commit: %w", domain.ErrTransactionFailed, err)
	}
	return nil
}

func (e *TransactionExecutor) rollback(tx port.Tx, name string) {
	if err := tx.Rollback(); err != nil {
		e.log.WithField("tx", name).WithError(err).Warn("TX:ROLLBACK_FAILED")
	}
}
