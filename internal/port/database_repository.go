package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
)

// Session groups the repositories bound to one connection or transaction.
type Session interface {
	Items() StockItemRepository
	Suppliers() SupplierRepository
	Customers() CustomerRepository
	PurchaseOrders() PurchaseOrderRepository
	PurchaseReturns() PurchaseReturnRepository
	Invoices() InvoiceRepository
	Notifications() NotificationRepository
	Settings() SettingsRepository
}

type Tx interface {
	Session
	Commit() error
	Rollback() error
}

// Store is the persistent store. Its own Session methods autocommit; Begin
// opens an all-or-nothing scope.
type Store interface {
	Session
	Begin(ctx context.Context) (Tx, error)
}

type StockItemRepository interface {
	Create(ctx context.Context, item *domain.StockItem) (int64, error)
	Get(ctx context.Context, id int64) (*domain.StockItem, error)
	List(ctx context.Context, activeOnly bool) ([]domain.StockItem, error)

	// Update rewrites the descriptive columns and the active flag. Quantity
	// is left alone; only the ledger primitives below touch it.
	Update(ctx context.Context, item *domain.StockItem) error

	// AdjustQuantity applies delta in a single conditional statement and
	// returns the resulting quantity. It fails with domain.ErrInvalidAdjustment
	// when the result would be negative.
	AdjustQuantity(ctx context.Context, id int64, delta int) (int, error)

	SetQuantity(ctx context.Context, id int64, quantity int) error
}

type SupplierRepository interface {
	Create(ctx context.Context, s *domain.Supplier) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Supplier, error)
	List(ctx context.Context) ([]domain.Supplier, error)
	Update(ctx context.Context, s *domain.Supplier) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Customer, error)
	ListWithOutstanding(ctx context.Context) ([]domain.Customer, error)
	SetStatus(ctx context.Context, id int64, status domain.CustomerStatus) error

	// AdjustOutstanding fails with domain.ErrNegativeOutstanding rather than
	// let the balance drop below zero.
	AdjustOutstanding(ctx context.Context, id int64, delta decimal.Decimal) error
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *domain.PurchaseOrder) (int64, error)
	Get(ctx context.Context, id int64) (*domain.PurchaseOrder, error)

	// GetForUpdate locks the order row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error)

	List(ctx context.Context, filter domain.PurchaseOrderFilter) ([]domain.PurchaseOrder, error)

	// Replace, Delete and MarkReceived only touch Pending orders and return
	// domain.ErrInvalidState otherwise.
	Replace(ctx context.Context, po *domain.PurchaseOrder) error
	Delete(ctx context.Context, id int64) error
	MarkReceived(ctx context.Context, id int64, at time.Time) error
}

type PurchaseReturnRepository interface {
	Create(ctx context.Context, r *domain.PurchaseReturn) (int64, error)
	ReturnedQuantity(ctx context.Context, orderID, itemID int64) (int, error)
	List(ctx context.Context, orderID int64) ([]domain.PurchaseReturn, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.SalesInvoice) (int64, error)
	Get(ctx context.Context, id int64) (*domain.SalesInvoice, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.SalesInvoice, error)
	List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.SalesInvoice, error)

	// UpdateSettlement persists paid amount, balance and status.
	UpdateSettlement(ctx context.Context, inv *domain.SalesInvoice) error

	AddPayment(ctx context.Context, p *domain.Payment) (int64, error)
	Payments(ctx context.Context, invoiceID int64) ([]domain.Payment, error)
}

type NotificationRepository interface {
	// CreateIfNoUnread inserts n unless an Unread notification with the same
	// key exists. created is false when the insert was skipped.
	CreateIfNoUnread(ctx context.Context, n *domain.Notification) (created bool, err error)

	List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) (int64, error)
}

type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
}
