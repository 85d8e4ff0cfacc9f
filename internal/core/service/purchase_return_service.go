package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type PurchaseReturnInput struct {
	OrderID    int64     `json:"order_id" validate:"required,gt=0"`
	ItemID     int64     `json:"item_id" validate:"required,gt=0"`
	Quantity   int       `json:"quantity" validate:"gt=0"`
	Reason     string    `json:"reason" validate:"required,max=500"`
	ReturnedAt time.Time `json:"returned_at"`
}

type PurchaseReturnService struct {
	store   port.Store
	exec    *TransactionExecutor
	ledger  *StockLedger
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewPurchaseReturnService(store port.Store, exec *TransactionExecutor, ledger *StockLedger, metrics *Metrics, log logrus.FieldLogger) *PurchaseReturnService {
	return &PurchaseReturnService{
		store:   store,
		exec:    exec,
		ledger:  ledger,
		metrics: metrics,
		log:     orDiscard(log),
		now:     time.Now,
	}
}

// Create records goods sent back to the supplier of a received order and
// debits them from the stock ledger.
func (s *PurchaseReturnService) Create(ctx context.Context, in PurchaseReturnInput) (*domain.PurchaseReturn, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ReturnedAt.IsZero() {
		in.ReturnedAt = s.now()
	}

	ret := &domain.PurchaseReturn{
		OrderID:    in.OrderID,
		ItemID:     in.ItemID,
		Quantity:   in.Quantity,
		Reason:     in.Reason,
		ReturnedAt: in.ReturnedAt,
		CreatedAt:  s.now(),
	}

	err := s.exec.Execute(ctx, "purchase_return_create", func(ctx context.Context, sess port.Session) error {
		// the order row lock serializes concurrent returns against one order
		po, err := sess.PurchaseOrders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		remaining, err := returnable(ctx, sess, po, in.ItemID)
		if err != nil {
			return err
		}
		if in.Quantity > remaining {
			return fmt.Errorf("return %d of item %d on order %d, %d returnable: %w",
				in.Quantity, in.ItemID, in.OrderID, remaining, domain.ErrInsufficientReturnable)
		}

		id, err := sess.PurchaseReturns().Create(ctx, ret)
		if err != nil {
			return fmt.Errorf("insert purchase return: %w", err)
		}
		ret.ID = id

		_, err = s.ledger.Adjust(ctx, sess, in.ItemID, -in.Quantity)
		return err
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": in.OrderID,
			"item_id":  in.ItemID,
			"quantity": in.Quantity,
		}).WithError(err).Warn("RETURN:REJECTED")
		return nil, err
	}

	s.metrics.observeAdjustment(-in.Quantity)
	s.log.WithFields(logrus.Fields{
		"return_id": ret.ID,
		"order_id":  in.OrderID,
		"item_id":   in.ItemID,
		"quantity":  in.Quantity,
	}).Info("RETURN:CREATED")
	return ret, nil
}

// Returnable reports how many units of itemID can still be returned against
// the order.
func (s *PurchaseReturnService) Returnable(ctx context.Context, orderID, itemID int64) (int, error) {
	po, err := s.store.PurchaseOrders().Get(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return returnable(ctx, s.store, po, itemID)
}

// List returns the returns recorded against orderID, or all returns when
// orderID is zero.
func (s *PurchaseReturnService) List(ctx context.Context, orderID int64) ([]domain.PurchaseReturn, error) {
	return s.store.PurchaseReturns().List(ctx, orderID)
}

func returnable(ctx context.Context, sess port.Session, po *domain.PurchaseOrder, itemID int64) (int, error) {
	if po.Status != domain.OrderStatusReceived {
		return 0, fmt.Errorf("return against order %d (%s): %w", po.ID, po.Status, domain.ErrInvalidState)
	}
	received, ok := po.OrderedQuantity(itemID)
	if !ok {
		return 0, domain.Validationf("item %d is not on order %d", itemID, po.ID)
	}
	returned, err := sess.PurchaseReturns().ReturnedQuantity(ctx, po.ID, itemID)
	if err != nil {
		return 0, fmt.Errorf("sum prior returns: %w", err)
	}
	return received - returned, nil
}
