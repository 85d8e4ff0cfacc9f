package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "Pending"
	OrderStatusReceived OrderStatus = "Received"
)

type OrderLine struct {
	ItemID   int64           `db:"item_id" json:"item_id"`
	Quantity int             `db:"quantity" json:"quantity"`
	UnitCost decimal.Decimal `db:"unit_cost" json:"unit_cost"`
}

type PurchaseOrder struct {
	ID         int64       `db:"id" json:"id"`
	SupplierID int64       `db:"supplier_id" json:"supplier_id"`
	Status     OrderStatus `db:"status" json:"status"`
	OrderedAt  time.Time   `db:"ordered_at" json:"ordered_at"`
	ExpectedAt time.Time   `db:"expected_at" json:"expected_at"`
	ReceivedAt *time.Time  `db:"received_at" json:"received_at,omitempty"`
	Lines      []OrderLine `db:"-" json:"lines"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderedQuantity sums every line for itemID; an item may appear on more
// than one line.
func (po PurchaseOrder) OrderedQuantity(itemID int64) (int, bool) {
	var total int
	var found bool
	for _, l := range po.Lines {
		if l.ItemID == itemID {
			total += l.Quantity
			found = true
		}
	}
	return total, found
}

func (po PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range po.Lines {
		total = total.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

type PurchaseOrderFilter struct {
	Status     OrderStatus
	SupplierID int64
}

type PurchaseReturn struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	ItemID     int64     `db:"item_id" json:"item_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Reason     string    `db:"reason" json:"reason"`
	ReturnedAt time.Time `db:"returned_at" json:"returned_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
