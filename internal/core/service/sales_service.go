package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type SaleLineInput struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"gt=0"`

	// UnitPrice overrides the catalog price when set.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type FinalizeInput struct {
	RequestID     string          `json:"request_id" validate:"max=128"`
	CustomerID    int64           `json:"customer_id" validate:"required,gt=0"`
	Lines         []SaleLineInput `json:"lines" validate:"required,min=1,dive"`
	DiscountPct   decimal.Decimal `json:"discount_pct"`
	TaxPct        decimal.Decimal `json:"tax_pct"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMethod string          `json:"payment_method" validate:"max=50"`
	Notes         string          `json:"notes" validate:"max=1000"`
}

type SalesService struct {
	store   port.Store
	exec    *TransactionExecutor
	ledger  *StockLedger
	idem    port.IdempotencyStore
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewSalesService builds the fulfillment workflow. idem may be nil, in which
// case request IDs are ignored.
func NewSalesService(store port.Store, exec *TransactionExecutor, ledger *StockLedger, idem port.IdempotencyStore, metrics *Metrics, log logrus.FieldLogger) *SalesService {
	return &SalesService{
		store:   store,
		exec:    exec,
		ledger:  ledger,
		idem:    idem,
		metrics: metrics,
		log:     orDiscard(log),
		now:     time.Now,
	}
}

// Finalize prices the sale, persists the invoice and its first payment and
// debits every line from the stock ledger, all in one transaction.
func (s *SalesService) Finalize(ctx context.Context, in FinalizeInput) (*domain.SalesInvoice, error) {
	if err := s.validateFinalize(in); err != nil {
		return nil, err
	}

	if in.RequestID != "" && s.idem != nil {
		key := "invoice:" + in.RequestID
		ok, err := s.idem.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
		inv, err := s.finalize(ctx, in)
		if err != nil {
			// ctx may be the reason the transaction failed
			if rerr := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); rerr != nil {
				s.log.WithField("request_id", in.RequestID).WithError(rerr).Error("INVOICE:IDEMPOTENCY_RELEASE_FAILED")
			}
			return nil, err
		}
		return inv, nil
	}
	return s.finalize(ctx, in)
}

func (s *SalesService) finalize(ctx context.Context, in FinalizeInput) (*domain.SalesInvoice, error) {
	now := s.now()
	inv := &domain.SalesInvoice{
		Number:      newInvoiceNumber(now),
		CustomerID:  in.CustomerID,
		DiscountPct: in.DiscountPct,
		TaxPct:      in.TaxPct,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ops := []Operation{
		func(ctx context.Context, sess port.Session) error {
			cust, err := sess.Customers().Get(ctx, in.CustomerID)
			if err != nil {
				return fmt.Errorf("customer %d: %w", in.CustomerID, err)
			}
			if !cust.IsActive() {
				return domain.Validationf("customer %d is not active", in.CustomerID)
			}

			lines, err := priceLines(ctx, sess, in.Lines)
			if err != nil {
				return err
			}
			totals := domain.ComputeTotals(lines, in.DiscountPct, in.TaxPct, in.PaidAmount)
			inv.Lines = lines
			inv.Subtotal = totals.Subtotal
			inv.DiscountAmount = totals.DiscountAmount
			inv.TaxAmount = totals.TaxAmount
			inv.GrandTotal = totals.GrandTotal
			inv.PaidAmount = totals.PaidAmount
			inv.BalanceDue = totals.BalanceDue
			inv.Status = totals.Status

			id, err := sess.Invoices().Create(ctx, inv)
			if err != nil {
				return fmt.Errorf("insert invoice: %w", err)
			}
			inv.ID = id
			return nil
		},
		func(ctx context.Context, sess port.Session) error {
			if !in.PaidAmount.IsPositive() {
				return nil
			}
			_, err := sess.Invoices().AddPayment(ctx, &domain.Payment{
				InvoiceID: inv.ID,
				Amount:    in.PaidAmount,
				Method:    in.PaymentMethod,
				PaidAt:    now,
			})
			if err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
			return nil
		},
		func(ctx context.Context, sess port.Session) error {
			for _, line := range inv.Lines {
				if _, err := s.ledger.Adjust(ctx, sess, line.ItemID, -line.Quantity); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, sess port.Session) error {
			if !inv.BalanceDue.IsPositive() {
				return nil
			}
			return sess.Customers().AdjustOutstanding(ctx, inv.CustomerID, inv.BalanceDue)
		},
	}

	if err := s.exec.Execute(ctx, "invoice_finalize", ops...); err != nil {
		s.log.WithFields(logrus.Fields{
			"customer_id": in.CustomerID,
			"lines":       len(in.Lines),
		}).WithError(err).Warn("INVOICE:REJECTED")
		return nil, err
	}

	for _, line := range inv.Lines {
		s.metrics.observeAdjustment(-line.Quantity)
	}
	s.log.WithFields(logrus.Fields{
		"invoice":     inv.Number,
		"invoice_id":  inv.ID,
		"grand_total": inv.GrandTotal.StringFixed(2),
		"status":      inv.Status,
	}).Info("INVOICE:FINALIZED")
	return inv, nil
}

// RecordPayment settles part or all of an open invoice.
func (s *SalesService) RecordPayment(ctx context.Context, invoiceID int64, amount decimal.Decimal, method string) (*domain.SalesInvoice, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("payment amount must be positive")
	}
	if strings.TrimSpace(method) == "" {
		return nil, domain.Validationf("payment method is required")
	}

	var inv *domain.SalesInvoice
	now := s.now()
	err := s.exec.Execute(ctx, "invoice_payment", func(ctx context.Context, sess port.Session) error {
		var err error
		inv, err = sess.Invoices().GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == domain.InvoiceStatusPaid || inv.Status == domain.InvoiceStatusCancelled {
			return fmt.Errorf("pay invoice %s (%s): %w", inv.Number, inv.Status, domain.ErrInvalidState)
		}
		if amount.GreaterThan(inv.BalanceDue) {
			return domain.Validationf("payment %s exceeds balance due %s", amount.StringFixed(2), inv.BalanceDue.StringFixed(2))
		}

		if _, err := sess.Invoices().AddPayment(ctx, &domain.Payment{
			InvoiceID: invoiceID,
			Amount:    amount,
			Method:    method,
			PaidAt:    now,
		}); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		inv.PaidAmount = inv.PaidAmount.Add(amount)
		inv.BalanceDue = inv.GrandTotal.Sub(inv.PaidAmount)
		inv.Status = domain.StatusFor(inv.PaidAmount, inv.BalanceDue)
		inv.UpdatedAt = now
		if err := sess.Invoices().UpdateSettlement(ctx, inv); err != nil {
			return err
		}
		return sess.Customers().AdjustOutstanding(ctx, inv.CustomerID, amount.Neg())
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"invoice": inv.Number,
		"amount":  amount.StringFixed(2),
		"status":  inv.Status,
	}).Info("INVOICE:PAYMENT_RECORDED")
	return inv, nil
}

// Cancel voids an unpaid invoice and puts its lines back into stock.
func (s *SalesService) Cancel(ctx context.Context, invoiceID int64) (*domain.SalesInvoice, error) {
	var inv *domain.SalesInvoice
	err := s.exec.Execute(ctx, "invoice_cancel", func(ctx context.Context, sess port.Session) error {
		var err error
		inv, err = sess.Invoices().GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvoiceStatusPending || !inv.PaidAmount.IsZero() {
			return fmt.Errorf("cancel invoice %s (%s): %w", inv.Number, inv.Status, domain.ErrInvalidState)
		}

		for _, line := range inv.Lines {
			if _, err := s.ledger.Adjust(ctx, sess, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}

		outstanding := inv.BalanceDue
		inv.Status = domain.InvoiceStatusCancelled
		inv.BalanceDue = decimal.Zero
		inv.UpdatedAt = s.now()
		if err := sess.Invoices().UpdateSettlement(ctx, inv); err != nil {
			return err
		}
		if !outstanding.IsPositive() {
			return nil
		}
		return sess.Customers().AdjustOutstanding(ctx, inv.CustomerID, outstanding.Neg())
	})
	if err != nil {
		return nil, err
	}

	for _, line := range inv.Lines {
		s.metrics.observeAdjustment(line.Quantity)
	}
	s.log.WithField("invoice", inv.Number).Info("INVOICE:CANCELLED")
	return inv, nil
}

func (s *SalesService) Get(ctx context.Context, invoiceID int64) (*domain.SalesInvoice, error) {
	return s.store.Invoices().Get(ctx, invoiceID)
}

func (s *SalesService) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.SalesInvoice, error) {
	return s.store.Invoices().List(ctx, filter)
}

func (s *SalesService) Payments(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	return s.store.Invoices().Payments(ctx, invoiceID)
}

func (s *SalesService) validateFinalize(in FinalizeInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
		return domain.Validationf("discount must be between 0 and 100 percent")
	}
	if in.TaxPct.IsNegative() {
		return domain.Validationf("tax must not be negative")
	}
	if in.PaidAmount.IsNegative() {
		return domain.Validationf("paid amount must not be negative")
	}
	if in.PaidAmount.IsPositive() && strings.TrimSpace(in.PaymentMethod) == "" {
		return domain.Validationf("payment method is required when an amount is paid")
	}
	for i, l := range in.Lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return domain.Validationf("line %d: unit price must not be negative", i+1)
		}
	}
	return nil
}

// priceLines resolves catalog prices and performs the soft availability
// check. The check is advisory; the ledger's conditional decrement is what
// actually prevents overselling.
func priceLines(ctx context.Context, sess port.Session, in []SaleLineInput) ([]domain.InvoiceLine, error) {
	requested := make(map[int64]int, len(in))
	items := make(map[int64]*domain.StockItem, len(in))
	lines := make([]domain.InvoiceLine, 0, len(in))

	for i, l := range in {
		item, ok := items[l.ItemID]
		if !ok {
			var err error
			item, err = sess.Items().Get(ctx, l.ItemID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, domain.Validationf("line %d: item %d does not exist", i+1, l.ItemID)
				}
				return nil, err
			}
			items[l.ItemID] = item
		}
		if !item.Active {
			return nil, domain.Validationf("line %d: item %q is not active", i+1, item.Name)
		}

		requested[l.ItemID] += l.Quantity
		if requested[l.ItemID] > item.Quantity {
			return nil, fmt.Errorf("line %d: %d of %q requested, %d in stock: %w",
				i+1, requested[l.ItemID], item.Name, item.Quantity, domain.ErrInvalidAdjustment)
		}

		price := item.UnitPrice
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		lines = append(lines, domain.NewInvoiceLine(l.ItemID, l.Quantity, price))
	}
	return lines, nil
}

func newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}
