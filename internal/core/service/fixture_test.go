package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/storage"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	ctx     context.Context
	store   *storage.MemoryStore
	metrics *Metrics
	exec    *TransactionExecutor
	ledger  *StockLedger
	catalog *CatalogService
	orders  *PurchaseOrderService
	returns *PurchaseReturnService
	sales   *SalesService
	idem    *mockIdempotency
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	exec := NewTransactionExecutor(store, metrics, nil)
	ledger := NewStockLedger(store, exec, metrics, nil)
	idem := newMockIdempotency()

	return &fixture{
		ctx:     context.Background(),
		store:   store,
		metrics: metrics,
		exec:    exec,
		ledger:  ledger,
		catalog: NewCatalogService(store, nil),
		orders:  NewPurchaseOrderService(store, exec, ledger, metrics, nil),
		returns: NewPurchaseReturnService(store, exec, ledger, metrics, nil),
		sales:   NewSalesService(store, exec, ledger, idem, metrics, nil),
		idem:    idem,
	}
}

func (f *fixture) item(t *testing.T, name string, qty int, price string) *domain.StockItem {
	t.Helper()
	item, err := f.catalog.CreateItem(f.ctx, CreateItemInput{
		Name:      name,
		Quantity:  qty,
		UnitCost:  decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		UnitPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) supplier(t *testing.T) *domain.Supplier {
	t.Helper()
	s, err := f.catalog.CreateSupplier(f.ctx, CreateSupplierInput{Name: "Acme Pharma"})
	require.NoError(t, err)
	return s
}

func (f *fixture) customer(t *testing.T) *domain.Customer {
	t.Helper()
	c, err := f.catalog.CreateCustomer(f.ctx, CreateCustomerInput{Name: "Jane Doe"})
	require.NoError(t, err)
	return c
}

func (f *fixture) quantity(t *testing.T, itemID int64) int {
	t.Helper()
	qty, err := f.ledger.Quantity(f.ctx, itemID)
	require.NoError(t, err)
	return qty
}

func (f *fixture) outstanding(t *testing.T, customerID int64) decimal.Decimal {
	t.Helper()
	c, err := f.catalog.GetCustomer(f.ctx, customerID)
	require.NoError(t, err)
	return c.OutstandingAmount
}

// pendingOrder creates a Pending order with one line per (item, qty) pair.
func (f *fixture) pendingOrder(t *testing.T, supplierID int64, lines ...OrderLineInput) *domain.PurchaseOrder {
	t.Helper()
	now := time.Now()
	po, err := f.orders.Create(f.ctx, PurchaseOrderInput{
		SupplierID: supplierID,
		Lines:      lines,
		OrderedAt:  now,
		ExpectedAt: now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	return po
}

// failOnNth makes the nth call to op fail with errInjected.
func failOnNth(op string, n int) storage.FaultFunc {
	var mu sync.Mutex
	seen := 0
	return func(got string) error {
		if got != op {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == n {
			return errInjected
		}
		return nil
	}
}

type mockIdempotency struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// a real store call fails on a dead context
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}
