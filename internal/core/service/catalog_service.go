package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type CreateItemInput struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Category     string          `json:"category" validate:"max=100"`
	Brand        string          `json:"brand" validate:"max=100"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	ReorderLevel int             `json:"reorder_level" validate:"gte=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	SupplierID   *int64          `json:"supplier_id"`
}

type CreateSupplierInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=50"`
	Email string `json:"email" validate:"omitempty,email"`
}

type CreateCustomerInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=50"`
}

// UpdateItemInput replaces an item's descriptive fields. Quantity is not
// editable here; use the stock ledger. A nil Active keeps the current flag.
type UpdateItemInput struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Category     string          `json:"category" validate:"max=100"`
	Brand        string          `json:"brand" validate:"max=100"`
	ReorderLevel int             `json:"reorder_level" validate:"gte=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	SupplierID   *int64          `json:"supplier_id"`
	Active       *bool           `json:"active"`
}

type UpdateSupplierInput struct {
	Name   string `json:"name" validate:"required,max=255"`
	Phone  string `json:"phone" validate:"max=50"`
	Email  string `json:"email" validate:"omitempty,email"`
	Active *bool  `json:"active"`
}

// CatalogService maintains the master data the workflows reference.
type CatalogService struct {
	store port.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewCatalogService(store port.Store, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{store: store, log: orDiscard(log), now: time.Now}
}

func (c *CatalogService) CreateItem(ctx context.Context, in CreateItemInput) (*domain.StockItem, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.UnitCost.IsNegative() || in.UnitPrice.IsNegative() {
		return nil, domain.Validationf("unit cost and unit price must not be negative")
	}
	if in.SupplierID != nil {
		if _, err := c.store.Suppliers().Get(ctx, *in.SupplierID); err != nil {
			return nil, fmt.Errorf("item supplier: %w", err)
		}
	}

	now := c.now()
	item := &domain.StockItem{
		Name:         strings.TrimSpace(in.Name),
		Category:     in.Category,
		Brand:        in.Brand,
		Quantity:     in.Quantity,
		ReorderLevel: in.ReorderLevel,
		UnitCost:     in.UnitCost,
		UnitPrice:    in.UnitPrice,
		ExpiryDate:   in.ExpiryDate,
		SupplierID:   in.SupplierID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := c.store.Items().Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	item.ID = id

	c.log.WithFields(logrus.Fields{"item_id": id, "name": item.Name}).Info("ITEM:CREATED")
	return item, nil
}

func (c *CatalogService) GetItem(ctx context.Context, id int64) (*domain.StockItem, error) {
	return c.store.Items().Get(ctx, id)
}

func (c *CatalogService) ListItems(ctx context.Context, activeOnly bool) ([]domain.StockItem, error) {
	return c.store.Items().List(ctx, activeOnly)
}

func (c *CatalogService) UpdateItem(ctx context.Context, id int64, in UpdateItemInput) (*domain.StockItem, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validationf("item name is required")
	}
	if in.UnitCost.IsNegative() || in.UnitPrice.IsNegative() {
		return nil, domain.Validationf("unit cost and unit price must not be negative")
	}
	item, err := c.store.Items().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.SupplierID != nil {
		if _, err := c.store.Suppliers().Get(ctx, *in.SupplierID); err != nil {
			return nil, fmt.Errorf("item supplier: %w", err)
		}
	}

	item.Name = strings.TrimSpace(in.Name)
	item.Category = in.Category
	item.Brand = in.Brand
	item.ReorderLevel = in.ReorderLevel
	item.UnitCost = in.UnitCost
	item.UnitPrice = in.UnitPrice
	item.ExpiryDate = in.ExpiryDate
	item.SupplierID = in.SupplierID
	if in.Active != nil {
		item.Active = *in.Active
	}
	item.UpdatedAt = c.now()
	if err := c.store.Items().Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	c.log.WithFields(logrus.Fields{"item_id": id, "active": item.Active}).Info("ITEM:UPDATED")
	return item, nil
}

// DeactivateItem hides an item from sales, purchasing and alerts. Its stock
// and history stay.
func (c *CatalogService) DeactivateItem(ctx context.Context, id int64) error {
	item, err := c.store.Items().Get(ctx, id)
	if err != nil {
		return err
	}
	if !item.Active {
		return nil
	}
	item.Active = false
	item.UpdatedAt = c.now()
	if err := c.store.Items().Update(ctx, item); err != nil {
		return fmt.Errorf("deactivate item: %w", err)
	}
	c.log.WithField("item_id", id).Info("ITEM:DEACTIVATED")
	return nil
}

func (c *CatalogService) CreateSupplier(ctx context.Context, in CreateSupplierInput) (*domain.Supplier, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	s := &domain.Supplier{
		Name:      strings.TrimSpace(in.Name),
		Phone:     in.Phone,
		Email:     in.Email,
		Active:    true,
		CreatedAt: c.now(),
	}
	id, err := c.store.Suppliers().Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	s.ID = id
	return s, nil
}

func (c *CatalogService) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return c.store.Suppliers().List(ctx)
}

func (c *CatalogService) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	return c.store.Suppliers().Get(ctx, id)
}

func (c *CatalogService) UpdateSupplier(ctx context.Context, id int64, in UpdateSupplierInput) (*domain.Supplier, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	s, err := c.store.Suppliers().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Name = strings.TrimSpace(in.Name)
	s.Phone = in.Phone
	s.Email = in.Email
	if in.Active != nil {
		s.Active = *in.Active
	}
	if err := c.store.Suppliers().Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update supplier: %w", err)
	}
	return s, nil
}

// DeactivateSupplier blocks new purchase orders against the supplier.
// Existing orders are untouched.
func (c *CatalogService) DeactivateSupplier(ctx context.Context, id int64) error {
	s, err := c.store.Suppliers().Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.Active {
		return nil
	}
	s.Active = false
	if err := c.store.Suppliers().Update(ctx, s); err != nil {
		return fmt.Errorf("deactivate supplier: %w", err)
	}
	c.log.WithField("supplier_id", id).Info("SUPPLIER:DEACTIVATED")
	return nil
}

func (c *CatalogService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*domain.Customer, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	cust := &domain.Customer{
		Name:              strings.TrimSpace(in.Name),
		Phone:             in.Phone,
		OutstandingAmount: decimal.Zero,
		Status:            domain.CustomerStatusActive,
		CreatedAt:         c.now(),
	}
	id, err := c.store.Customers().Create(ctx, cust)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	cust.ID = id
	return cust, nil
}

func (c *CatalogService) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return c.store.Customers().Get(ctx, id)
}

// DeactivateCustomer is the soft delete: the customer keeps their invoices
// and balance but can no longer buy and drops out of due reminders.
func (c *CatalogService) DeactivateCustomer(ctx context.Context, id int64) error {
	if err := c.store.Customers().SetStatus(ctx, id, domain.CustomerStatusInactive); err != nil {
		return fmt.Errorf("deactivate customer: %w", err)
	}
	c.log.WithField("customer_id", id).Info("CUSTOMER:DEACTIVATED")
	return nil
}
