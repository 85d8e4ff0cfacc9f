package storage

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

// FaultFunc is consulted before every repository call on a MemoryStore. A
// non-nil return aborts the call with that error. Tests use it to break a
// workflow at a chosen step.
type FaultFunc func(op string) error

// MemoryStore keeps everything in process. A transaction holds the store
// exclusively and works on a private copy that replaces the live data on
// commit, so an aborted transaction leaves no trace.
type MemoryStore struct {
	sem  chan struct{}
	data *memData

	faultMu sync.Mutex
	fault   FaultFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:  make(chan struct{}, 1),
		data: newMemData(),
	}
}

// SetFault installs f; nil clears it.
func (m *MemoryStore) SetFault(f FaultFunc) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.fault = f
}

// SetSetting stores a raw settings value.
func (m *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	m.data.settings[key] = value
	return nil
}

func (m *MemoryStore) checkFault(op string) error {
	m.faultMu.Lock()
	f := m.fault
	m.faultMu.Unlock()
	if f == nil {
		return nil
	}
	return f(op)
}

func (m *MemoryStore) lock(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryStore) unlock() { <-m.sem }

func (m *MemoryStore) Begin(ctx context.Context) (port.Tx, error) {
	if err := m.checkFault("begin"); err != nil {
		return nil, err
	}
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	tx := &memTx{store: m, data: m.data.clone()}
	tx.memSession = memSession{store: m, view: func(ctx context.Context, fn func(*memData) error) error {
		if tx.done {
			return sql.ErrTxDone
		}
		return fn(tx.data)
	}}
	return tx, nil
}

func (m *MemoryStore) autocommit() memSession {
	return memSession{store: m, view: func(ctx context.Context, fn func(*memData) error) error {
		if err := m.lock(ctx); err != nil {
			return err
		}
		defer m.unlock()
		return fn(m.data)
	}}
}

func (m *MemoryStore) Items() port.StockItemRepository {
	return m.autocommit().Items()
}

func (m *MemoryStore) Suppliers() port.SupplierRepository {
	return m.autocommit().Suppliers()
}

func (m *MemoryStore) Customers() port.CustomerRepository {
	return m.autocommit().Customers()
}

func (m *MemoryStore) PurchaseOrders() port.PurchaseOrderRepository {
	return m.autocommit().PurchaseOrders()
}

func (m *MemoryStore) PurchaseReturns() port.PurchaseReturnRepository {
	return m.autocommit().PurchaseReturns()
}

func (m *MemoryStore) Invoices() port.InvoiceRepository {
	return m.autocommit().Invoices()
}

func (m *MemoryStore) Notifications() port.NotificationRepository {
	return m.autocommit().Notifications()
}

func (m *MemoryStore) Settings() port.SettingsRepository {
	return m.autocommit().Settings()
}

type memTx struct {
	memSession
	store *MemoryStore
	data  *memData
	done  bool
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.store.checkFault("commit"); err != nil {
		t.done = true
		t.store.unlock()
		return err
	}
	t.store.data = t.data
	t.done = true
	t.store.unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.unlock()
	return nil
}

// memSession routes repository calls either to a transaction's private copy
// or, for autocommit calls, to the live data under the store lock.
type memSession struct {
	store *MemoryStore
	view  func(ctx context.Context, fn func(*memData) error) error
}

func (s memSession) do(ctx context.Context, op string, fn func(*memData) error) error {
	if err := s.store.checkFault(op); err != nil {
		return err
	}
	return s.view(ctx, fn)
}

func (s memSession) Items() port.StockItemRepository                { return memItems{s} }
func (s memSession) Suppliers() port.SupplierRepository             { return memSuppliers{s} }
func (s memSession) Customers() port.CustomerRepository             { return memCustomers{s} }
func (s memSession) PurchaseOrders() port.PurchaseOrderRepository   { return memOrders{s} }
func (s memSession) PurchaseReturns() port.PurchaseReturnRepository { return memReturns{s} }
func (s memSession) Invoices() port.InvoiceRepository               { return memInvoices{s} }
func (s memSession) Notifications() port.NotificationRepository     { return memNotifications{s} }
func (s memSession) Settings() port.SettingsRepository              { return memSettings{s} }

type memData struct {
	seq           map[string]int64
	items         map[int64]domain.StockItem
	suppliers     map[int64]domain.Supplier
	customers     map[int64]domain.Customer
	orders        map[int64]domain.PurchaseOrder
	returns       []domain.PurchaseReturn
	invoices      map[int64]domain.SalesInvoice
	payments      []domain.Payment
	notifications []domain.Notification
	settings      map[string]string
}

func newMemData() *memData {
	return &memData{
		seq:       map[string]int64{},
		items:     map[int64]domain.StockItem{},
		suppliers: map[int64]domain.Supplier{},
		customers: map[int64]domain.Customer{},
		orders:    map[int64]domain.PurchaseOrder{},
		invoices:  map[int64]domain.SalesInvoice{},
		settings:  map[string]string{},
	}
}

// clone copies every table. Line slices are copied too since callers may
// hold on to returned records.
func (d *memData) clone() *memData {
	c := &memData{
		seq:           copyMap(d.seq),
		items:         copyMap(d.items),
		suppliers:     copyMap(d.suppliers),
		customers:     copyMap(d.customers),
		orders:        make(map[int64]domain.PurchaseOrder, len(d.orders)),
		returns:       slices.Clone(d.returns),
		invoices:      make(map[int64]domain.SalesInvoice, len(d.invoices)),
		payments:      slices.Clone(d.payments),
		notifications: slices.Clone(d.notifications),
		settings:      copyMap(d.settings),
	}
	for id, po := range d.orders {
		po.Lines = slices.Clone(po.Lines)
		c.orders[id] = po
	}
	for id, inv := range d.invoices {
		inv.Lines = slices.Clone(inv.Lines)
		c.invoices[id] = inv
	}
	return c
}

func (d *memData) nextID(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sortedValues[V any](m map[int64]V, desc bool) []V {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if desc {
		slices.Reverse(ids)
	}
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type memItems struct{ s memSession }

func (r memItems) Create(ctx context.Context, item *domain.StockItem) (int64, error) {
	var id int64
	err := r.s.do(ctx, "items.create", func(d *memData) error {
		id = d.nextID("items")
		cp := *item
		cp.ID = id
		d.items[id] = cp
		return nil
	})
	return id, err
}

func (r memItems) Get(ctx context.Context, id int64) (*domain.StockItem, error) {
	var out domain.StockItem
	err := r.s.do(ctx, "items.get", func(d *memData) error {
		item, ok := d.items[id]
		if !ok {
			return domain.NotFoundf("stock item %d", id)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memItems) List(ctx context.Context, activeOnly bool) ([]domain.StockItem, error) {
	var out []domain.StockItem
	err := r.s.do(ctx, "items.list", func(d *memData) error {
		for _, item := range sortedValues(d.items, false) {
			if activeOnly && !item.Active {
				continue
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

func (r memItems) Update(ctx context.Context, item *domain.StockItem) error {
	return r.s.do(ctx, "items.update", func(d *memData) error {
		cur, ok := d.items[item.ID]
		if !ok {
			return domain.NotFoundf("stock item %d", item.ID)
		}
		cp := *item
		cp.Quantity = cur.Quantity
		cp.CreatedAt = cur.CreatedAt
		d.items[item.ID] = cp
		return nil
	})
}

func (r memItems) AdjustQuantity(ctx context.Context, id int64, delta int) (int, error) {
	var qty int
	err := r.s.do(ctx, "items.adjust", func(d *memData) error {
		item, ok := d.items[id]
		if !ok {
			return domain.NotFoundf("stock item %d", id)
		}
		if item.Quantity+delta < 0 {
			return domain.ErrInvalidAdjustment
		}
		item.Quantity += delta
		item.UpdatedAt = time.Now()
		d.items[id] = item
		qty = item.Quantity
		return nil
	})
	return qty, err
}

func (r memItems) SetQuantity(ctx context.Context, id int64, quantity int) error {
	return r.s.do(ctx, "items.set", func(d *memData) error {
		item, ok := d.items[id]
		if !ok {
			return domain.NotFoundf("stock item %d", id)
		}
		if quantity < 0 {
			return domain.ErrInvalidAdjustment
		}
		item.Quantity = quantity
		item.UpdatedAt = time.Now()
		d.items[id] = item
		return nil
	})
}

type memSuppliers struct{ s memSession }

func (r memSuppliers) Create(ctx context.Context, s *domain.Supplier) (int64, error) {
	var id int64
	err := r.s.do(ctx, "suppliers.create", func(d *memData) error {
		id = d.nextID("suppliers")
		cp := *s
		cp.ID = id
		d.suppliers[id] = cp
		return nil
	})
	return id, err
}

func (r memSuppliers) Get(ctx context.Context, id int64) (*domain.Supplier, error) {
	var out domain.Supplier
	err := r.s.do(ctx, "suppliers.get", func(d *memData) error {
		s, ok := d.suppliers[id]
		if !ok {
			return domain.NotFoundf("supplier %d", id)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memSuppliers) List(ctx context.Context) ([]domain.Supplier, error) {
	var out []domain.Supplier
	err := r.s.do(ctx, "suppliers.list", func(d *memData) error {
		out = sortedValues(d.suppliers, false)
		return nil
	})
	return out, err
}

func (r memSuppliers) Update(ctx context.Context, s *domain.Supplier) error {
	return r.s.do(ctx, "suppliers.update", func(d *memData) error {
		cur, ok := d.suppliers[s.ID]
		if !ok {
			return domain.NotFoundf("supplier %d", s.ID)
		}
		cp := *s
		cp.CreatedAt = cur.CreatedAt
		d.suppliers[s.ID] = cp
		return nil
	})
}

type memCustomers struct{ s memSession }

func (r memCustomers) Create(ctx context.Context, c *domain.Customer) (int64, error) {
	var id int64
	err := r.s.do(ctx, "customers.create", func(d *memData) error {
		id = d.nextID("customers")
		cp := *c
		cp.ID = id
		d.customers[id] = cp
		return nil
	})
	return id, err
}

func (r memCustomers) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	var out domain.Customer
	err := r.s.do(ctx, "customers.get", func(d *memData) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFoundf("customer %d", id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memCustomers) ListWithOutstanding(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.s.do(ctx, "customers.outstanding", func(d *memData) error {
		for _, c := range sortedValues(d.customers, false) {
			if c.IsActive() && c.OutstandingAmount.IsPositive() {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r memCustomers) SetStatus(ctx context.Context, id int64, status domain.CustomerStatus) error {
	return r.s.do(ctx, "customers.set_status", func(d *memData) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFoundf("customer %d", id)
		}
		c.Status = status
		d.customers[id] = c
		return nil
	})
}

func (r memCustomers) AdjustOutstanding(ctx context.Context, id int64, delta decimal.Decimal) error {
	return r.s.do(ctx, "customers.adjust_outstanding", func(d *memData) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFoundf("customer %d", id)
		}
		next := c.OutstandingAmount.Add(delta)
		if next.IsNegative() {
			return domain.ErrNegativeOutstanding
		}
		c.OutstandingAmount = next
		d.customers[id] = c
		return nil
	})
}

type memOrders struct{ s memSession }

func (r memOrders) Create(ctx context.Context, po *domain.PurchaseOrder) (int64, error) {
	var id int64
	err := r.s.do(ctx, "orders.create", func(d *memData) error {
		id = d.nextID("orders")
		cp := *po
		cp.ID = id
		cp.Lines = slices.Clone(po.Lines)
		d.orders[id] = cp
		return nil
	})
	return id, err
}

func (r memOrders) get(ctx context.Context, op string, id int64) (*domain.PurchaseOrder, error) {
	var out domain.PurchaseOrder
	err := r.s.do(ctx, op, func(d *memData) error {
		po, ok := d.orders[id]
		if !ok {
			return domain.NotFoundf("purchase order %d", id)
		}
		out = po
		out.Lines = slices.Clone(po.Lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memOrders) Get(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.get(ctx, "orders.get", id)
}

// GetForUpdate needs no row lock here; a transaction already holds the
// whole store.
func (r memOrders) GetForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.get(ctx, "orders.get_for_update", id)
}

func (r memOrders) List(ctx context.Context, filter domain.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	var out []domain.PurchaseOrder
	err := r.s.do(ctx, "orders.list", func(d *memData) error {
		for _, po := range sortedValues(d.orders, true) {
			if filter.Status != "" && po.Status != filter.Status {
				continue
			}
			if filter.SupplierID != 0 && po.SupplierID != filter.SupplierID {
				continue
			}
			po.Lines = slices.Clone(po.Lines)
			out = append(out, po)
		}
		return nil
	})
	return out, err
}

func (r memOrders) pending(d *memData, id int64) (domain.PurchaseOrder, error) {
	po, ok := d.orders[id]
	if !ok {
		return po, domain.NotFoundf("purchase order %d", id)
	}
	if po.Status != domain.OrderStatusPending {
		return po, domain.ErrInvalidState
	}
	return po, nil
}

func (r memOrders) Replace(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.s.do(ctx, "orders.replace", func(d *memData) error {
		if _, err := r.pending(d, po.ID); err != nil {
			return err
		}
		cp := *po
		cp.Lines = slices.Clone(po.Lines)
		d.orders[po.ID] = cp
		return nil
	})
}

func (r memOrders) Delete(ctx context.Context, id int64) error {
	return r.s.do(ctx, "orders.delete", func(d *memData) error {
		if _, err := r.pending(d, id); err != nil {
			return err
		}
		delete(d.orders, id)
		return nil
	})
}

func (r memOrders) MarkReceived(ctx context.Context, id int64, at time.Time) error {
	return r.s.do(ctx, "orders.mark_received", func(d *memData) error {
		po, err := r.pending(d, id)
		if err != nil {
			return err
		}
		po.Status = domain.OrderStatusReceived
		po.ReceivedAt = &at
		po.UpdatedAt = at
		d.orders[id] = po
		return nil
	})
}

type memReturns struct{ s memSession }

func (r memReturns) Create(ctx context.Context, ret *domain.PurchaseReturn) (int64, error) {
	var id int64
	err := r.s.do(ctx, "returns.create", func(d *memData) error {
		id = d.nextID("returns")
		cp := *ret
		cp.ID = id
		d.returns = append(d.returns, cp)
		return nil
	})
	return id, err
}

func (r memReturns) ReturnedQuantity(ctx context.Context, orderID, itemID int64) (int, error) {
	var total int
	err := r.s.do(ctx, "returns.sum", func(d *memData) error {
		for _, ret := range d.returns {
			if ret.OrderID == orderID && ret.ItemID == itemID {
				total += ret.Quantity
			}
		}
		return nil
	})
	return total, err
}

func (r memReturns) List(ctx context.Context, orderID int64) ([]domain.PurchaseReturn, error) {
	var out []domain.PurchaseReturn
	err := r.s.do(ctx, "returns.list", func(d *memData) error {
		for _, ret := range d.returns {
			if orderID == 0 || ret.OrderID == orderID {
				out = append(out, ret)
			}
		}
		return nil
	})
	return out, err
}

type memInvoices struct{ s memSession }

func (r memInvoices) Create(ctx context.Context, inv *domain.SalesInvoice) (int64, error) {
	var id int64
	err := r.s.do(ctx, "invoices.create", func(d *memData) error {
		for _, existing := range d.invoices {
			if existing.Number == inv.Number {
				return domain.Validationf("invoice number %s already exists", inv.Number)
			}
		}
		id = d.nextID("invoices")
		cp := *inv
		cp.ID = id
		cp.Lines = slices.Clone(inv.Lines)
		d.invoices[id] = cp
		return nil
	})
	return id, err
}

func (r memInvoices) get(ctx context.Context, op string, id int64) (*domain.SalesInvoice, error) {
	var out domain.SalesInvoice
	err := r.s.do(ctx, op, func(d *memData) error {
		inv, ok := d.invoices[id]
		if !ok {
			return domain.NotFoundf("invoice %d", id)
		}
		out = inv
		out.Lines = slices.Clone(inv.Lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memInvoices) Get(ctx context.Context, id int64) (*domain.SalesInvoice, error) {
	return r.get(ctx, "invoices.get", id)
}

func (r memInvoices) GetForUpdate(ctx context.Context, id int64) (*domain.SalesInvoice, error) {
	return r.get(ctx, "invoices.get_for_update", id)
}

func (r memInvoices) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.SalesInvoice, error) {
	var out []domain.SalesInvoice
	err := r.s.do(ctx, "invoices.list", func(d *memData) error {
		for _, inv := range sortedValues(d.invoices, true) {
			if filter.Status != "" && inv.Status != filter.Status {
				continue
			}
			if filter.Keyword != "" &&
				!containsFold(inv.Number, filter.Keyword) &&
				!containsFold(d.customers[inv.CustomerID].Name, filter.Keyword) {
				continue
			}
			inv.Lines = slices.Clone(inv.Lines)
			out = append(out, inv)
		}
		return nil
	})
	return out, err
}

func (r memInvoices) UpdateSettlement(ctx context.Context, inv *domain.SalesInvoice) error {
	return r.s.do(ctx, "invoices.update_settlement", func(d *memData) error {
		cur, ok := d.invoices[inv.ID]
		if !ok {
			return domain.NotFoundf("invoice %d", inv.ID)
		}
		cur.PaidAmount = inv.PaidAmount
		cur.BalanceDue = inv.BalanceDue
		cur.Status = inv.Status
		cur.UpdatedAt = inv.UpdatedAt
		d.invoices[inv.ID] = cur
		return nil
	})
}

func (r memInvoices) AddPayment(ctx context.Context, p *domain.Payment) (int64, error) {
	var id int64
	err := r.s.do(ctx, "invoices.add_payment", func(d *memData) error {
		if _, ok := d.invoices[p.InvoiceID]; !ok {
			return domain.NotFoundf("invoice %d", p.InvoiceID)
		}
		id = d.nextID("payments")
		cp := *p
		cp.ID = id
		d.payments = append(d.payments, cp)
		return nil
	})
	return id, err
}

func (r memInvoices) Payments(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.s.do(ctx, "invoices.payments", func(d *memData) error {
		for _, p := range d.payments {
			if p.InvoiceID == invoiceID {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

type memNotifications struct{ s memSession }

func (r memNotifications) CreateIfNoUnread(ctx context.Context, n *domain.Notification) (bool, error) {
	var created bool
	err := r.s.do(ctx, "notifications.create", func(d *memData) error {
		for _, existing := range d.notifications {
			if existing.Status == domain.NotificationUnread && existing.Key() == n.Key() {
				return nil
			}
		}
		n.ID = d.nextID("notifications")
		if n.Status == "" {
			n.Status = domain.NotificationUnread
		}
		d.notifications = append(d.notifications, *n)
		created = true
		return nil
	})
	return created, err
}

func (r memNotifications) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.s.do(ctx, "notifications.list", func(d *memData) error {
		for i := len(d.notifications) - 1; i >= 0; i-- {
			n := d.notifications[i]
			if filter.Status != "" && n.Status != filter.Status {
				continue
			}
			if len(filter.Categories) > 0 && !slices.Contains(filter.Categories, n.Category) {
				continue
			}
			if len(filter.Severities) > 0 && !slices.Contains(filter.Severities, n.Severity) {
				continue
			}
			if filter.Keyword != "" && !containsFold(n.Message, filter.Keyword) {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (r memNotifications) MarkRead(ctx context.Context, id int64) error {
	return r.s.do(ctx, "notifications.mark_read", func(d *memData) error {
		for i := range d.notifications {
			if d.notifications[i].ID == id {
				d.notifications[i].Status = domain.NotificationRead
				return nil
			}
		}
		return domain.NotFoundf("notification %d", id)
	})
}

func (r memNotifications) MarkAllRead(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.do(ctx, "notifications.mark_all_read", func(d *memData) error {
		for i := range d.notifications {
			if d.notifications[i].Status == domain.NotificationUnread {
				d.notifications[i].Status = domain.NotificationRead
				n++
			}
		}
		return nil
	})
	return n, err
}

type memSettings struct{ s memSession }

func (r memSettings) All(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := r.s.do(ctx, "settings.all", func(d *memData) error {
		out = copyMap(d.settings)
		return nil
	})
	return out, err
}
