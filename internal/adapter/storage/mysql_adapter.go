package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

const mysqlDuplicateEntry = 1062

const (
	itemColumns     = `id, name, category, brand, quantity, reorder_level, unit_cost, unit_price, expiry_date, supplier_id, active, created_at, updated_at`
	supplierColumns = `id, name, phone, email, active, created_at`
	customerColumns = `id, name, phone, outstanding_amount, status, created_at`
	orderColumns    = `id, supplier_id, status, ordered_at, expected_at, received_at, created_at, updated_at`
	returnColumns   = `id, order_id, item_id, quantity, reason, returned_at, created_at`
	invoiceColumns  = `id, number, customer_id, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, grand_total, paid_amount, balance_due, status, notes, created_at, updated_at`
	notifColumns    = `id, type, message, category, severity, related_table, related_id, status, created_at`
)

// dbtx is satisfied by both *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExtContext
}

type MySQLAdapter struct {
	mysqlSession
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{
		mysqlSession: mysqlSession{db: db, q: db},
		db:           db,
	}
}

func (m *MySQLAdapter) Begin(ctx context.Context) (port.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &mysqlTx{mysqlSession: mysqlSession{q: tx}, tx: tx}, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

type mysqlTx struct {
	mysqlSession
	tx *sqlx.Tx
}

func (t *mysqlTx) Commit() error   { return t.tx.Commit() }
func (t *mysqlTx) Rollback() error { return t.tx.Rollback() }

// mysqlSession runs statements on q. db is set only outside a transaction;
// multi-statement writes then open their own.
type mysqlSession struct {
	db *sqlx.DB
	q  dbtx
}

func (s mysqlSession) atomic(ctx context.Context, fn func(q dbtx) error) error {
	if s.db == nil {
		return fn(s.q)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s mysqlSession) Items() port.StockItemRepository                { return mysqlItems{s} }
func (s mysqlSession) Suppliers() port.SupplierRepository             { return mysqlSuppliers{s} }
func (s mysqlSession) Customers() port.CustomerRepository             { return mysqlCustomers{s} }
func (s mysqlSession) PurchaseOrders() port.PurchaseOrderRepository   { return mysqlOrders{s} }
func (s mysqlSession) PurchaseReturns() port.PurchaseReturnRepository { return mysqlReturns{s} }
func (s mysqlSession) Invoices() port.InvoiceRepository               { return mysqlInvoices{s} }
func (s mysqlSession) Notifications() port.NotificationRepository     { return mysqlNotifications{s} }
func (s mysqlSession) Settings() port.SettingsRepository              { return mysqlSettings{s} }

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(keyword string) string {
	return "%" + strings.ToLower(likeEscaper.Replace(keyword)) + "%"
}

// exists reports whether table has a row with id. table is always a
// constant from this file.
func exists(ctx context.Context, q dbtx, table string, id int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

// requireRow maps an UPDATE that matched nothing to NotFound. MySQL reports
// unchanged rows as unaffected, so a zero count is checked against the table.
func requireRow(ctx context.Context, q dbtx, res sql.Result, table, what string, id int64) error {
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	ok, err := exists(ctx, q, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("%s %d", what, id)
	}
	return nil
}

type mysqlItems struct{ s mysqlSession }

func (r mysqlItems) Create(ctx context.Context, item *domain.StockItem) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO stock_items (name, category, brand, quantity, reorder_level, unit_cost, unit_price, expiry_date, supplier_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Category, item.Brand, item.Quantity, item.ReorderLevel,
		item.UnitCost, item.UnitPrice, item.ExpiryDate, item.SupplierID, item.Active,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stock item: %w", err)
	}
	return res.LastInsertId()
}

func (r mysqlItems) Get(ctx context.Context, id int64) (*domain.StockItem, error) {
	var item domain.StockItem
	err := sqlx.GetContext(ctx, r.s.q, &item, `SELECT `+itemColumns+` FROM stock_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("stock item %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query stock item: %w", err)
	}
	return &item, nil
}

func (r mysqlItems) List(ctx context.Context, activeOnly bool) ([]domain.StockItem, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY id`

	var items []domain.StockItem
	if err := sqlx.SelectContext(ctx, r.s.q, &items, query); err != nil {
		return nil, fmt.Errorf("query stock items: %w", err)
	}
	return items, nil
}

func (r mysqlItems) Update(ctx context.Context, item *domain.StockItem) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE stock_items
		SET name = ?, category = ?, brand = ?, reorder_level = ?, unit_cost = ?, unit_price = ?,
			expiry_date = ?, supplier_id = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.Category, item.Brand, item.ReorderLevel, item.UnitCost, item.UnitPrice,
		item.ExpiryDate, item.SupplierID, item.Active, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update stock item: %w", err)
	}
	return requireRow(ctx, r.s.q, res, "stock_items", "stock item", item.ID)
}

// AdjustQuantity is a single conditional UPDATE, so concurrent adjustments
// of one item cannot interleave between the check and the write.
func (r mysqlItems) AdjustQuantity(ctx context.Context, id int64, delta int) (int, error) {
	var qty int
	err := r.s.atomic(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `
			UPDATE stock_items
			SET quantity = quantity + ?, updated_at = ?
			WHERE id = ? AND quantity + ? >= 0`,
			delta, time.Now(), id, delta,
		)
		if err != nil {
			return fmt.Errorf("update stock item: %w", err)
		}

		rows, _ := res.RowsAffected()
		if rows == 0 {
			ok, err := exists(ctx, q, "stock_items", id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFoundf("stock item %d", id)
			}
			return domain.ErrInvalidAdjustment
		}

		// the UPDATE holds the row lock, so this reads our own write
		return sqlx.GetContext(ctx, q, &qty, `SELECT quantity FROM stock_items WHERE id = ?`, id)
	})
	return qty, err
}

func (r mysqlItems) SetQuantity(ctx context.Context, id int64, quantity int) error {
	if quantity < 0 {
		return domain.ErrInvalidAdjustment
	}
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE stock_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update stock item: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	ok, err := exists(ctx, r.s.q, "stock_items", id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("stock item %d", id)
	}
	return nil
}

type mysqlSuppliers struct{ s mysqlSession }

func (r mysqlSuppliers) Create(ctx context.Context, s *domain.Supplier) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO suppliers (name, phone, email, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.Name, s.Phone, s.Email, s.Active, s.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert supplier: %w", err)
	}
	return res.LastInsertId()
}

func (r mysqlSuppliers) Get(ctx context.Context, id int64) (*domain.Supplier, error) {
	var s domain.Supplier
	err := sqlx.GetContext(ctx, r.s.q, &s, `SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("supplier %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query supplier: %w", err)
	}
	return &s, nil
}

func (r mysqlSuppliers) List(ctx context.Context) ([]domain.Supplier, error) {
	var out []domain.Supplier
	if err := sqlx.SelectContext(ctx, r.s.q, &out, `SELECT `+supplierColumns+` FROM suppliers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	return out, nil
}

func (r mysqlSuppliers) Update(ctx context.Context, s *domain.Supplier) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE suppliers SET name = ?, phone = ?, email = ?, active = ? WHERE id = ?`,
		s.Name, s.Phone, s.Email, s.Active, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	return requireRow(ctx, r.s.q, res, "suppliers", "supplier", s.ID)
}

type mysqlCustomers struct{ s mysqlSession }

func (r mysqlCustomers) Create(ctx context.Context, c *domain.Customer) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO customers (name, phone, outstanding_amount, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Phone, c.OutstandingAmount, c.Status, c.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return res.LastInsertId()
}

func (r mysqlCustomers) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := sqlx.GetContext(ctx, r.s.q, &c, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("customer %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (r mysqlCustomers) ListWithOutstanding(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := sqlx.SelectContext(ctx, r.s.q, &out, `
		SELECT `+customerColumns+` FROM customers
		WHERE outstanding_amount > 0 AND status = ?
		ORDER BY id`, domain.CustomerStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return out, nil
}

func (r mysqlCustomers) SetStatus(ctx context.Context, id int64, status domain.CustomerStatus) error {
	res, err := r.s.q.ExecContext(ctx, `UPDATE customers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update customer status: %w", err)
	}
	return requireRow(ctx, r.s.q, res, "customers", "customer", id)
}

func (r mysqlCustomers) AdjustOutstanding(ctx context.Context, id int64, delta decimal.Decimal) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE customers SET outstanding_amount = outstanding_amount + ?
		WHERE id = ? AND outstanding_amount + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		return fmt.Errorf("update customer outstanding: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	ok, err := exists(ctx, r.s.q, "customers", id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("customer %d", id)
	}
	// a zero delta matches without changing the row
	if delta.IsNegative() {
		return domain.ErrNegativeOutstanding
	}
	return nil
}

type mysqlOrders struct{ s mysqlSession }

type orderLineRow struct {
	OrderID int64 `db:"order_id"`
	domain.OrderLine
}

func insertOrderLines(ctx context.Context, q dbtx, orderID int64, lines []domain.OrderLine) error {
	for i, l := range lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO purchase_order_lines (order_id, line_no, item_id, quantity, unit_cost) VALUES (?, ?, ?, ?, ?)`,
			orderID, i+1, l.ItemID, l.Quantity, l.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}
	return nil
}

func loadOrderLines(ctx context.Context, q dbtx, orders []domain.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	for i, po := range orders {
		ids[i] = po.ID
	}
	query, args, err := sqlx.In(`
		SELECT order_id, item_id, quantity, unit_cost FROM purchase_order_lines
		WHERE order_id IN (?) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("build order lines query: %w", err)
	}

	var rows []orderLineRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	byOrder := make(map[int64][]domain.OrderLine, len(orders))
	for _, row := range rows {
		byOrder[row.OrderID] = append(byOrder[row.OrderID], row.OrderLine)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return nil
}

func (r mysqlOrders) Create(ctx context.Context, po *domain.PurchaseOrder) (int64, error) {
	var id int64
	err := r.s.atomic(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO purchase_orders (supplier_id, status, ordered_at, expected_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			po.SupplierID, po.Status, po.OrderedAt, po.ExpectedAt, po.CreatedAt, po.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert purchase order: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertOrderLines(ctx, q, id, po.Lines)
	})
	return id, err
}

func (r mysqlOrders) get(ctx context.Context, id int64, lock string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := sqlx.GetContext(ctx, r.s.q, &po, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = ?`+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("purchase order %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query purchase order: %w", err)
	}
	orders := []domain.PurchaseOrder{po}
	if err := loadOrderLines(ctx, r.s.q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r mysqlOrders) Get(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.get(ctx, id, "")
}

func (r mysqlOrders) GetForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r mysqlOrders) List(ctx context.Context, filter domain.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SupplierID != 0 {
		where = append(where, "supplier_id = ?")
		args = append(args, filter.SupplierID)
	}

	query := `SELECT ` + orderColumns + ` FROM purchase_orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`

	var orders []domain.PurchaseOrder
	if err := sqlx.SelectContext(ctx, r.s.q, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}
	if err := loadOrderLines(ctx, r.s.q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// notPending explains why a Pending-only statement touched no rows.
func notPending(ctx context.Context, q dbtx, id int64) error {
	var status domain.OrderStatus
	err := sqlx.GetContext(ctx, q, &status, `SELECT status FROM purchase_orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("purchase order %d", id)
	}
	if err != nil {
		return fmt.Errorf("query purchase order: %w", err)
	}
	return domain.ErrInvalidState
}

func (r mysqlOrders) Replace(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.s.atomic(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `
			UPDATE purchase_orders
			SET supplier_id = ?, ordered_at = ?, expected_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			po.SupplierID, po.OrderedAt, po.ExpectedAt, po.UpdatedAt, po.ID, domain.OrderStatusPending,
		)
		if err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return notPending(ctx, q, po.ID)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM purchase_order_lines WHERE order_id = ?`, po.ID); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}
		return insertOrderLines(ctx, q, po.ID, po.Lines)
	})
}

func (r mysqlOrders) Delete(ctx context.Context, id int64) error {
	res, err := r.s.q.ExecContext(ctx, `
		DELETE FROM purchase_orders WHERE id = ? AND status = ?`, id, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("delete purchase order: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notPending(ctx, r.s.q, id)
	}
	return nil
}

func (r mysqlOrders) MarkReceived(ctx context.Context, id int64, at time.Time) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = ?, received_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		domain.OrderStatusReceived, at, at, id, domain.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notPending(ctx, r.s.q, id)
	}
	return nil
}

type mysqlReturns struct{ s mysqlSession }

func (r mysqlReturns) Create(ctx context.Context, ret *domain.PurchaseReturn) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO purchase_returns (order_id, item_id, quantity, reason, returned_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ret.OrderID, ret.ItemID, ret.Quantity, ret.Reason, ret.ReturnedAt, ret.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert purchase return: %w", err)
	}
	return res.LastInsertId()
}

func (r mysqlReturns) ReturnedQuantity(ctx context.Context, orderID, itemID int64) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, r.s.q, &total, `
		SELECT COALESCE(SUM(quantity), 0) FROM purchase_returns WHERE order_id = ? AND item_id = ?`,
		orderID, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("sum purchase returns: %w", err)
	}
	return total, nil
}

func (r mysqlReturns) List(ctx context.Context, orderID int64) ([]domain.PurchaseReturn, error) {
	query := `SELECT ` + returnColumns + ` FROM purchase_returns`
	var args []any
	if orderID != 0 {
		query += ` WHERE order_id = ?`
		args = append(args, orderID)
	}
	query += ` ORDER BY id`

	var out []domain.PurchaseReturn
	if err := sqlx.SelectContext(ctx, r.s.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query purchase returns: %w", err)
	}
	return out, nil
}

type mysqlInvoices struct{ s mysqlSession }

type invoiceLineRow struct {
	InvoiceID int64 `db:"invoice_id"`
	domain.InvoiceLine
}

func loadInvoiceLines(ctx context.Context, q dbtx, invoices []domain.SalesInvoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]int64, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	query, args, err := sqlx.In(`
		SELECT invoice_id, item_id, quantity, unit_price, line_total FROM sales_invoice_lines
		WHERE invoice_id IN (?) ORDER BY invoice_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("build invoice lines query: %w", err)
	}

	var rows []invoiceLineRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("query invoice lines: %w", err)
	}
	byInvoice := make(map[int64][]domain.InvoiceLine, len(invoices))
	for _, row := range rows {
		byInvoice[row.InvoiceID] = append(byInvoice[row.InvoiceID], row.InvoiceLine)
	}
	for i := range invoices {
		invoices[i].Lines = byInvoice[invoices[i].ID]
	}
	return nil
}

func (r mysqlInvoices) Create(ctx context.Context, inv *domain.SalesInvoice) (int64, error) {
	var id int64
	err := r.s.atomic(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO sales_invoices (number, customer_id, subtotal, discount_pct, discount_amount, tax_pct, tax_amount,
				grand_total, paid_amount, balance_due, status, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.Number, inv.CustomerID, inv.Subtotal, inv.DiscountPct, inv.DiscountAmount, inv.TaxPct, inv.TaxAmount,
			inv.GrandTotal, inv.PaidAmount, inv.BalanceDue, inv.Status, inv.Notes, inv.CreatedAt, inv.UpdatedAt,
		)
		if isDuplicateKey(err) {
			return domain.Validationf("invoice number %s already exists", inv.Number)
		}
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		for i, l := range inv.Lines {
			_, err := q.ExecContext(ctx, `
				INSERT INTO sales_invoice_lines (invoice_id, line_no, item_id, quantity, unit_price, line_total)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, i+1, l.ItemID, l.Quantity, l.UnitPrice, l.LineTotal,
			)
			if err != nil {
				return fmt.Errorf("insert invoice line %d: %w", i+1, err)
			}
		}
		return nil
	})
	return id, err
}

func (r mysqlInvoices) get(ctx context.Context, id int64, lock string) (*domain.SalesInvoice, error) {
	var inv domain.SalesInvoice
	err := sqlx.GetContext(ctx, r.s.q, &inv, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id = ?`+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("invoice %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	invoices := []domain.SalesInvoice{inv}
	if err := loadInvoiceLines(ctx, r.s.q, invoices); err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (r mysqlInvoices) Get(ctx context.Context, id int64) (*domain.SalesInvoice, error) {
	return r.get(ctx, id, "")
}

func (r mysqlInvoices) GetForUpdate(ctx context.Context, id int64) (*domain.SalesInvoice, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r mysqlInvoices) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.SalesInvoice, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Keyword != "" {
		p := likePattern(filter.Keyword)
		where = append(where, "(LOWER(i.number) LIKE ? OR LOWER(c.name) LIKE ?)")
		args = append(args, p, p)
	}

	query := `SELECT i.` + strings.ReplaceAll(invoiceColumns, ", ", ", i.") + `
		FROM sales_invoices i JOIN customers c ON c.id = i.customer_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY i.id DESC`

	var invoices []domain.SalesInvoice
	if err := sqlx.SelectContext(ctx, r.s.q, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	if err := loadInvoiceLines(ctx, r.s.q, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r mysqlInvoices) UpdateSettlement(ctx context.Context, inv *domain.SalesInvoice) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE sales_invoices SET paid_amount = ?, balance_due = ?, status = ?, updated_at = ? WHERE id = ?`,
		inv.PaidAmount, inv.BalanceDue, inv.Status, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.NotFoundf("invoice %d", inv.ID)
	}
	return nil
}

func (r mysqlInvoices) AddPayment(ctx context.Context, p *domain.Payment) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO payments (invoice_id, amount, method, paid_at) VALUES (?, ?, ?, ?)`,
		p.InvoiceID, p.Amount, p.Method, p.PaidAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return res.LastInsertId()
}

func (r mysqlInvoices) Payments(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	var out []domain.Payment
	err := sqlx.SelectContext(ctx, r.s.q, &out, `
		SELECT id, invoice_id, amount, method, paid_at FROM payments WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	return out, nil
}

type mysqlNotifications struct{ s mysqlSession }

// CreateIfNoUnread leans on the unique index over unread_key, so two
// scanners racing on the same condition still insert only one row.
func (r mysqlNotifications) CreateIfNoUnread(ctx context.Context, n *domain.Notification) (bool, error) {
	res, err := r.s.q.ExecContext(ctx, `
		INSERT INTO notifications (type, message, category, severity, related_table, related_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Type, n.Message, n.Category, n.Severity, n.RelatedTable, n.RelatedID, domain.NotificationUnread, n.CreatedAt,
	)
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return false, err
	}
	n.Status = domain.NotificationUnread
	return true, nil
}

func (r mysqlNotifications) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if len(filter.Categories) > 0 {
		where = append(where, "category IN (?)")
		args = append(args, filter.Categories)
	}
	if len(filter.Severities) > 0 {
		where = append(where, "severity IN (?)")
		args = append(args, filter.Severities)
	}
	if filter.Keyword != "" {
		where = append(where, "LOWER(message) LIKE ?")
		args = append(args, likePattern(filter.Keyword))
	}

	query := `SELECT ` + notifColumns + ` FROM notifications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build notifications query: %w", err)
	}
	var out []domain.Notification
	if err := sqlx.SelectContext(ctx, r.s.q, &out, r.s.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return out, nil
}

func (r mysqlNotifications) MarkRead(ctx context.Context, id int64) error {
	res, err := r.s.q.ExecContext(ctx, `UPDATE notifications SET status = ? WHERE id = ?`, domain.NotificationRead, id)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	ok, err := exists(ctx, r.s.q, "notifications", id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("notification %d", id)
	}
	return nil
}

func (r mysqlNotifications) MarkAllRead(ctx context.Context) (int64, error) {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE notifications SET status = ? WHERE status = ?`, domain.NotificationRead, domain.NotificationUnread)
	if err != nil {
		return 0, fmt.Errorf("update notifications: %w", err)
	}
	return res.RowsAffected()
}

type mysqlSettings struct{ s mysqlSession }

func (r mysqlSettings) All(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"setting_key"`
		Value string `db:"setting_value"`
	}
	if err := sqlx.SelectContext(ctx, r.s.q, &rows, `SELECT setting_key, setting_value FROM settings`); err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
