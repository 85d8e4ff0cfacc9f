package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	lines := []InvoiceLine{
		NewInvoiceLine(1, 3, d("12.99")),
		NewInvoiceLine(2, 1, d("0.50")),
	}

	tests := []struct {
		name                          string
		discount, tax, paid           string
		wantDiscount, wantTax, wantGT string
		wantBalance                   string
		wantStatus                    InvoiceStatus
	}{
		{"plain", "0", "0", "0", "0.00", "0.00", "39.47", "39.47", InvoiceStatusPending},
		{"discount then tax", "10", "17", "0", "3.95", "6.04", "41.56", "41.56", InvoiceStatusPending},
		{"partial payment", "0", "5", "20", "0.00", "1.97", "41.44", "21.44", InvoiceStatusPartiallyPaid},
		{"paid in full", "100", "0", "0", "39.47", "0.00", "0.00", "0.00", InvoiceStatusPaid},
		{"overpaid", "0", "0", "50", "0.00", "0.00", "39.47", "-10.53", InvoiceStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(lines, d(tt.discount), d(tt.tax), d(tt.paid))

			assert.Equal(t, "39.47", got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.wantDiscount, got.DiscountAmount.StringFixed(2))
			assert.Equal(t, tt.wantTax, got.TaxAmount.StringFixed(2))
			assert.Equal(t, tt.wantGT, got.GrandTotal.StringFixed(2))
			assert.Equal(t, tt.wantBalance, got.BalanceDue.StringFixed(2))
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, got.GrandTotal.Equal(got.Subtotal.Sub(got.DiscountAmount).Add(got.TaxAmount)))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, InvoiceStatusPending, StatusFor(decimal.Zero, d("10")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, StatusFor(d("1"), d("9")))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(d("10"), decimal.Zero))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(decimal.Zero, decimal.Zero))
}

func TestNewInvoiceLine(t *testing.T) {
	l := NewInvoiceLine(7, 4, d("2.25"))
	assert.Equal(t, int64(7), l.ItemID)
	assert.Equal(t, "9.00", l.LineTotal.StringFixed(2))
}
