package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

// StockLedger is the only writer of StockItem.Quantity.
type StockLedger struct {
	store   port.Store
	exec    *TransactionExecutor
	metrics *Metrics
	log     logrus.FieldLogger
}

func NewStockLedger(store port.Store, exec *TransactionExecutor, metrics *Metrics, log logrus.FieldLogger) *StockLedger {
	return &StockLedger{
		store:   store,
		exec:    exec,
		metrics: metrics,
		log:     orDiscard(log),
	}
}

// Adjust adds delta to the item's quantity and returns the new quantity.
func (l *StockLedger) Adjust(ctx context.Context, s port.Session, itemID int64, delta int) (int, error) {
	if delta == 0 {
		return 0, domain.Validationf("adjustment of item %d must be non-zero", itemID)
	}

	qty, err := s.Items().AdjustQuantity(ctx, itemID, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust item %d by %d: %w", itemID, delta, err)
	}
	return qty, nil
}

func (l *StockLedger) SetAbsolute(ctx context.Context, s port.Session, itemID int64, value int) error {
	if value < 0 {
		return fmt.Errorf("set item %d to %d: %w", itemID, value, domain.ErrInvalidAdjustment)
	}
	if err := s.Items().SetQuantity(ctx, itemID, value); err != nil {
		return fmt.Errorf("set item %d to %d: %w", itemID, value, err)
	}
	return nil
}

// CurrentQuantity is a point-in-time read; it takes no lock.
func (l *StockLedger) CurrentQuantity(ctx context.Context, s port.Session, itemID int64) (int, error) {
	item, err := s.Items().Get(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

func (l *StockLedger) Quantity(ctx context.Context, itemID int64) (int, error) {
	return l.CurrentQuantity(ctx, l.store, itemID)
}

// Correct overwrites the quantity of one item in its own transaction.
func (l *StockLedger) Correct(ctx context.Context, itemID int64, value int) error {
	var before int
	err := l.exec.Execute(ctx, "stock_correct", func(ctx context.Context, s port.Session) error {
		var err error
		if before, err = l.CurrentQuantity(ctx, s, itemID); err != nil {
			return err
		}
		return l.SetAbsolute(ctx, s, itemID, value)
	})
	if err != nil {
		return err
	}

	l.metrics.observeAdjustment(value - before)
	l.log.WithFields(logrus.Fields{
		"item_id": itemID,
		"from":    before,
		"to":      value,
	}).Info("STOCK:CORRECTED")
	return nil
}
