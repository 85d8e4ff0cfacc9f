package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockItem struct {
	ID           int64           `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Category     string          `db:"category" json:"category"`
	Brand        string          `db:"brand" json:"brand"`
	Quantity     int             `db:"quantity" json:"quantity"` // owned by the stock ledger
	ReorderLevel int             `db:"reorder_level" json:"reorder_level"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	ExpiryDate   *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	SupplierID   *int64          `db:"supplier_id" json:"supplier_id,omitempty"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type Supplier struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "Active"
	CustomerStatusInactive CustomerStatus = "Inactive"
)

type Customer struct {
	ID                int64           `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Phone             string          `db:"phone" json:"phone"`
	OutstandingAmount decimal.Decimal `db:"outstanding_amount" json:"outstanding_amount"`
	Status            CustomerStatus  `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

func (c Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}
