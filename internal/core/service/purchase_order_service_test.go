package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
)

func TestCreatePurchaseOrder_Validation(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t)
	item := f.item(t, "Amoxicillin", 0, "5.00")
	now := time.Now()

	tests := []struct {
		name    string
		in      PurchaseOrderInput
		wantErr error
	}{
		{
			name: "no lines",
			in: PurchaseOrderInput{SupplierID: supplier.ID, OrderedAt: now, ExpectedAt: now},
			wantErr: domain.ErrValidation,
		},
		{
			name: "zero quantity",
			in: PurchaseOrderInput{SupplierID: supplier.ID, OrderedAt: now, ExpectedAt: now,
				Lines: []OrderLineInput{{ItemID: item.ID, Quantity: 0}}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "expected before ordered",
			in: PurchaseOrderInput{SupplierID: supplier.ID, OrderedAt: now, ExpectedAt: now.AddDate(0, 0, -1),
				Lines: []OrderLineInput{{ItemID: item.ID, Quantity: 1}}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative cost",
			in: PurchaseOrderInput{SupplierID: supplier.ID, OrderedAt: now, ExpectedAt: now,
				Lines: []OrderLineInput{{ItemID: item.ID, Quantity: 1, UnitCost: decimal.NewFromInt(-1)}}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown supplier",
			in: PurchaseOrderInput{SupplierID: 999, OrderedAt: now, ExpectedAt: now,
				Lines: []OrderLineInput{{ItemID: item.ID, Quantity: 1}}},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "unknown item",
			in: PurchaseOrderInput{SupplierID: supplier.ID, OrderedAt: now, ExpectedAt: now,
				Lines: []OrderLineInput{{ItemID: 999, Quantity: 1}}},
			wantErr: domain.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	orders, err := f.orders.List(f.ctx, domain.PurchaseOrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestReceive_CreditsEveryLine(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t)
	a := f.item(t, "A", 2, "1.00")
	b := f.item(t, "B", 0, "1.00")

	po := f.pendingOrder(t, supplier.ID,
		OrderLineInput{ItemID: a.ID, Quantity: 10, UnitCost: decimal.RequireFromString("0.50")},
		OrderLineInput{ItemID: b.ID, Quantity: 4, UnitCost: decimal.RequireFromString("0.75")},
		OrderLineInput{ItemID: a.ID, Quantity: 1, UnitCost: decimal.RequireFromString("0.50")},
	)
	assert.Equal(t, domain.OrderStatusPending, po.Status)
	assert.Equal(t, "8.5", po.Total().String())

	received, err := f.orders.Receive(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReceived, received.Status)
	require.NotNil(t, received.ReceivedAt)

	assert.Equal(t, 13, f.quantity(t, a.ID))
	assert.Equal(t, 4, f.quantity(t, b.ID))

	stored, err := f.orders.Get(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReceived, stored.Status)
}

func TestReceive_Twice(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t)
	a := f.item(t, "A", 0, "1.00")
	po := f.pendingOrder(t, supplier.ID, OrderLineInput{ItemID: a.ID, Quantity: 5})

	_, err := f.orders.Receive(f.ctx, po.ID)
	require.NoError(t, err)

	_, err = f.orders.Receive(f.ctx, po.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 5, f.quantity(t, a.ID))
}

func TestReceive_FailureAtAnyStepLeavesNoTrace(t *testing.T) {
	// Receive runs: lock order, flip status, one credit per line, commit.
	tests := []struct {
		name string
		op   string
		nth  int
	}{
		{"begin", "begin", 1},
		{"order lock", "orders.get_for_update", 1},
		{"status flip", "orders.mark_received", 1},
		{"first line", "items.adjust", 1},
		{"second line", "items.adjust", 2},
		{"last line", "items.adjust", 3},
		{"commit", "commit", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			supplier := f.supplier(t)
			a := f.item(t, "A", 1, "1.00")
			b := f.item(t, "B", 2, "1.00")
			c := f.item(t, "C", 3, "1.00")
			po := f.pendingOrder(t, supplier.ID,
				OrderLineInput{ItemID: a.ID, Quantity: 10},
				OrderLineInput{ItemID: b.ID, Quantity: 10},
				OrderLineInput{ItemID: c.ID, Quantity: 10},
			)

			f.store.SetFault(failOnNth(tt.op, tt.nth))
			_, err := f.orders.Receive(f.ctx, po.ID)
			f.store.SetFault(nil)

			require.ErrorIs(t, err, domain.ErrTransactionFailed)
			require.ErrorIs(t, err, errInjected)
			assert.Equal(t, 1, f.quantity(t, a.ID))
			assert.Equal(t, 2, f.quantity(t, b.ID))
			assert.Equal(t, 3, f.quantity(t, c.ID))

			stored, err := f.orders.Get(f.ctx, po.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPending, stored.Status)
			assert.Nil(t, stored.ReceivedAt)

			// a retry after the fault clears succeeds
			_, err = f.orders.Receive(f.ctx, po.ID)
			require.NoError(t, err)
			assert.Equal(t, 11, f.quantity(t, a.ID))
			assert.Equal(t, 12, f.quantity(t, b.ID))
			assert.Equal(t, 13, f.quantity(t, c.ID))
		})
	}
}

func TestReceive_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Receive(f.ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEditAndDelete_OnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t)
	a := f.item(t, "A", 0, "1.00")
	b := f.item(t, "B", 0, "1.00")
	po := f.pendingOrder(t, supplier.ID, OrderLineInput{ItemID: a.ID, Quantity: 5})

	edited, err := f.orders.Edit(f.ctx, po.ID, PurchaseOrderInput{
		SupplierID: supplier.ID,
		Lines:      []OrderLineInput{{ItemID: b.ID, Quantity: 7}},
		OrderedAt:  po.OrderedAt,
		ExpectedAt: po.ExpectedAt,
	})
	require.NoError(t, err)
	require.Len(t, edited.Lines, 1)
	assert.Equal(t, b.ID, edited.Lines[0].ItemID)

	_, err = f.orders.Receive(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.quantity(t, a.ID))
	assert.Equal(t, 7, f.quantity(t, b.ID))

	_, err = f.orders.Edit(f.ctx, po.ID, PurchaseOrderInput{
		SupplierID: supplier.ID,
		Lines:      []OrderLineInput{{ItemID: a.ID, Quantity: 1}},
		OrderedAt:  po.OrderedAt,
		ExpectedAt: po.ExpectedAt,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = f.orders.Delete(f.ctx, po.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	other := f.pendingOrder(t, supplier.ID, OrderLineInput{ItemID: a.ID, Quantity: 1})
	require.NoError(t, f.orders.Delete(f.ctx, other.ID))
	_, err = f.orders.Get(f.ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPurchaseOrders_Filter(t *testing.T) {
	f := newFixture(t)
	supplier := f.supplier(t)
	a := f.item(t, "A", 0, "1.00")
	first := f.pendingOrder(t, supplier.ID, OrderLineInput{ItemID: a.ID, Quantity: 1})
	f.pendingOrder(t, supplier.ID, OrderLineInput{ItemID: a.ID, Quantity: 2})

	_, err := f.orders.Receive(f.ctx, first.ID)
	require.NoError(t, err)

	pending, err := f.orders.List(f.ctx, domain.PurchaseOrderFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Lines[0].Quantity)

	all, err := f.orders.List(f.ctx, domain.PurchaseOrderFilter{SupplierID: supplier.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
