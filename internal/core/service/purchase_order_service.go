package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type OrderLineInput struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity int             `json:"quantity" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// PurchaseOrderInput carries everything Create and Edit need; Edit replaces
// the order wholesale.
type PurchaseOrderInput struct {
	SupplierID int64            `json:"supplier_id" validate:"required,gt=0"`
	Lines      []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
	OrderedAt  time.Time        `json:"ordered_at" validate:"required"`
	ExpectedAt time.Time        `json:"expected_at" validate:"required"`
}

type PurchaseOrderService struct {
	store   port.Store
	exec    *TransactionExecutor
	ledger  *StockLedger
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewPurchaseOrderService(store port.Store, exec *TransactionExecutor, ledger *StockLedger, metrics *Metrics, log logrus.FieldLogger) *PurchaseOrderService {
	return &PurchaseOrderService{
		store:   store,
		exec:    exec,
		ledger:  ledger,
		metrics: metrics,
		log:     orDiscard(log),
		now:     time.Now,
	}
}

func (s *PurchaseOrderService) Create(ctx context.Context, in PurchaseOrderInput) (*domain.PurchaseOrder, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	po := &domain.PurchaseOrder{
		SupplierID: in.SupplierID,
		Status:     domain.OrderStatusPending,
		OrderedAt:  in.OrderedAt,
		ExpectedAt: in.ExpectedAt,
		Lines:      toOrderLines(in.Lines),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.exec.Execute(ctx, "purchase_order_create", func(ctx context.Context, sess port.Session) error {
		if err := checkOrderReferences(ctx, sess, in); err != nil {
			return err
		}
		id, err := sess.PurchaseOrders().Create(ctx, po)
		if err != nil {
			return fmt.Errorf("insert purchase order: %w", err)
		}
		po.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    po.ID,
		"supplier_id": po.SupplierID,
		"lines":       len(po.Lines),
	}).Info("PO:CREATED")
	return po, nil
}

// Receive moves a Pending order to Received and credits every line to the
// stock ledger. Either all of it happens or none of it does.
func (s *PurchaseOrderService) Receive(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	var po *domain.PurchaseOrder
	receivedAt := s.now()

	ops := []Operation{
		func(ctx context.Context, sess port.Session) error {
			var err error
			po, err = sess.PurchaseOrders().GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if po.Status != domain.OrderStatusPending {
				return fmt.Errorf("receive order %d (%s): %w", orderID, po.Status, domain.ErrInvalidState)
			}
			return sess.PurchaseOrders().MarkReceived(ctx, orderID, receivedAt)
		},
		func(ctx context.Context, sess port.Session) error {
			for _, line := range po.Lines {
				if _, err := s.ledger.Adjust(ctx, sess, line.ItemID, line.Quantity); err != nil {
					return err
				}
			}
			return nil
		},
	}
	if err := s.exec.Execute(ctx, "purchase_order_receive", ops...); err != nil {
		s.log.WithField("order_id", orderID).WithError(err).Warn("PO:RECEIVE_REJECTED")
		return nil, err
	}

	for _, line := range po.Lines {
		s.metrics.observeAdjustment(line.Quantity)
	}
	po.Status = domain.OrderStatusReceived
	po.ReceivedAt = &receivedAt

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"lines":    len(po.Lines),
	}).Info("PO:RECEIVED")
	return po, nil
}

func (s *PurchaseOrderService) Edit(ctx context.Context, orderID int64, in PurchaseOrderInput) (*domain.PurchaseOrder, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var po *domain.PurchaseOrder
	err := s.exec.Execute(ctx, "purchase_order_edit", func(ctx context.Context, sess port.Session) error {
		current, err := sess.PurchaseOrders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != domain.OrderStatusPending {
			return fmt.Errorf("edit order %d (%s): %w", orderID, current.Status, domain.ErrInvalidState)
		}
		if err := checkOrderReferences(ctx, sess, in); err != nil {
			return err
		}

		po = current
		po.SupplierID = in.SupplierID
		po.OrderedAt = in.OrderedAt
		po.ExpectedAt = in.ExpectedAt
		po.Lines = toOrderLines(in.Lines)
		po.UpdatedAt = s.now()
		return sess.PurchaseOrders().Replace(ctx, po)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_id", orderID).Info("PO:EDITED")
	return po, nil
}

func (s *PurchaseOrderService) Delete(ctx context.Context, orderID int64) error {
	err := s.exec.Execute(ctx, "purchase_order_delete", func(ctx context.Context, sess port.Session) error {
		po, err := sess.PurchaseOrders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if po.Status != domain.OrderStatusPending {
			return fmt.Errorf("delete order %d (%s): %w", orderID, po.Status, domain.ErrInvalidState)
		}
		return sess.PurchaseOrders().Delete(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.log.WithField("order_id", orderID).Info("PO:DELETED")
	return nil
}

func (s *PurchaseOrderService) Get(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	return s.store.PurchaseOrders().Get(ctx, orderID)
}

func (s *PurchaseOrderService) List(ctx context.Context, filter domain.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	return s.store.PurchaseOrders().List(ctx, filter)
}

func (s *PurchaseOrderService) validate(in PurchaseOrderInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	for i, l := range in.Lines {
		if l.UnitCost.IsNegative() {
			return domain.Validationf("line %d: unit cost must not be negative", i+1)
		}
	}
	if in.ExpectedAt.Before(in.OrderedAt) {
		return domain.Validationf("expected date %s is before order date %s",
			in.ExpectedAt.Format(time.DateOnly), in.OrderedAt.Format(time.DateOnly))
	}
	return nil
}

func checkOrderReferences(ctx context.Context, sess port.Session, in PurchaseOrderInput) error {
	supplier, err := sess.Suppliers().Get(ctx, in.SupplierID)
	if err != nil {
		return fmt.Errorf("supplier %d: %w", in.SupplierID, err)
	}
	if !supplier.Active {
		return domain.Validationf("supplier %d is not active", in.SupplierID)
	}

	for i, l := range in.Lines {
		item, err := sess.Items().Get(ctx, l.ItemID)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if !item.Active {
			return domain.Validationf("line %d: item %d is not active", i+1, l.ItemID)
		}
	}
	return nil
}

func toOrderLines(in []OrderLineInput) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(in))
	for _, l := range in {
		lines = append(lines, domain.OrderLine{
			ItemID:   l.ItemID,
			Quantity: l.Quantity,
			UnitCost: l.UnitCost,
		})
	}
	return lines
}
