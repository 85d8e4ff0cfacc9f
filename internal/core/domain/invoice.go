package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "Pending"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PartiallyPaid"
	InvoiceStatusPaid          InvoiceStatus = "Paid"
	InvoiceStatusCancelled     InvoiceStatus = "Cancelled"
)

var hundred = decimal.NewFromInt(100)

type InvoiceLine struct {
	ItemID    int64           `db:"item_id" json:"item_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

type SalesInvoice struct {
	ID             int64           `db:"id" json:"id"`
	Number         string          `db:"number" json:"number"`
	CustomerID     int64           `db:"customer_id" json:"customer_id"`
	Lines          []InvoiceLine   `db:"-" json:"lines"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountPct    decimal.Decimal `db:"discount_pct" json:"discount_pct"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxPct         decimal.Decimal `db:"tax_pct" json:"tax_pct"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grand_total"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	BalanceDue     decimal.Decimal `db:"balance_due" json:"balance_due"`
	Status         InvoiceStatus   `db:"status" json:"status"`
	Notes          string          `db:"notes" json:"notes"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type Payment struct {
	ID        int64           `db:"id" json:"id"`
	InvoiceID int64           `db:"invoice_id" json:"invoice_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    string          `db:"method" json:"method"`
	PaidAt    time.Time       `db:"paid_at" json:"paid_at"`
}

type InvoiceTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
	PaidAmount     decimal.Decimal
	BalanceDue     decimal.Decimal
	Status         InvoiceStatus
}

// ComputeTotals applies the discount before tax. Derived amounts are rounded
// to cents so that GrandTotal == Subtotal - DiscountAmount + TaxAmount holds
// exactly.
func ComputeTotals(lines []InvoiceLine, discountPct, taxPct, paid decimal.Decimal) InvoiceTotals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}

	discount := subtotal.Mul(discountPct).Div(hundred).Round(2)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxPct).Div(hundred).Round(2)
	grand := taxable.Add(tax)
	balance := grand.Sub(paid)

	return InvoiceTotals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		GrandTotal:     grand,
		PaidAmount:     paid,
		BalanceDue:     balance,
		Status:         StatusFor(paid, balance),
	}
}

func StatusFor(paid, balance decimal.Decimal) InvoiceStatus {
	switch {
	case !balance.IsPositive():
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusPending
	}
}

func NewInvoiceLine(itemID int64, qty int, unitPrice decimal.Decimal) InvoiceLine {
	return InvoiceLine{
		ItemID:    itemID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type InvoiceFilter struct {
	Status  InvoiceStatus
	Keyword string // matched against number and customer name
}
