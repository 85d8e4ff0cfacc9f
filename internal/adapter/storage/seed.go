package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

type DemoData struct {
	SupplierIDs []int64
	ItemIDs     []int64
	CustomerIDs []int64
}

// SeedDemo fills an empty store with a small catalog, enough to exercise
// every workflow by hand or from the stress tester.
func SeedDemo(ctx context.Context, store port.Store, now time.Time) (*DemoData, error) {
	out := &DemoData{}

	suppliers := []domain.Supplier{
		{Name: "MediSupply Co", Phone: "0300-1111111", Email: "orders@medisupply.example"},
		{Name: "HealthLine Distributors", Phone: "0300-2222222", Email: "sales@healthline.example"},
	}
	for _, s := range suppliers {
		s.Active = true
		s.CreatedAt = now
		id, err := store.Suppliers().Create(ctx, &s)
		if err != nil {
			return nil, fmt.Errorf("seed supplier %q: %w", s.Name, err)
		}
		out.SupplierIDs = append(out.SupplierIDs, id)
	}

	expiry := func(days int) *time.Time {
		t := now.AddDate(0, 0, days)
		return &t
	}
	items := []domain.StockItem{
		{Name: "Paracetamol 500mg", Category: "Analgesic", Brand: "Panadol", Quantity: 120, ReorderLevel: 20,
			UnitCost: decimal.RequireFromString("1.20"), UnitPrice: decimal.RequireFromString("2.00"), ExpiryDate: expiry(365)},
		{Name: "Amoxicillin 250mg", Category: "Antibiotic", Brand: "Amoxil", Quantity: 12, ReorderLevel: 15,
			UnitCost: decimal.RequireFromString("4.50"), UnitPrice: decimal.RequireFromString("7.25"), ExpiryDate: expiry(20)},
		{Name: "Cetirizine 10mg", Category: "Antihistamine", Brand: "Zyrtec", Quantity: 4, ReorderLevel: 10,
			UnitCost: decimal.RequireFromString("0.80"), UnitPrice: decimal.RequireFromString("1.50"), ExpiryDate: expiry(5)},
		{Name: "Omeprazole 20mg", Category: "Antacid", Brand: "Losec", Quantity: 60, ReorderLevel: 10,
			UnitCost: decimal.RequireFromString("2.10"), UnitPrice: decimal.RequireFromString("3.60")},
	}
	for i, item := range items {
		supplierID := out.SupplierIDs[i%len(out.SupplierIDs)]
		item.SupplierID = &supplierID
		item.Active = true
		item.CreatedAt = now
		item.UpdatedAt = now
		id, err := store.Items().Create(ctx, &item)
		if err != nil {
			return nil, fmt.Errorf("seed item %q: %w", item.Name, err)
		}
		out.ItemIDs = append(out.ItemIDs, id)
	}

	for _, name := range []string{"Walk-in Customer", "City Clinic"} {
		c := domain.Customer{
			Name:              name,
			OutstandingAmount: decimal.Zero,
			Status:            domain.CustomerStatusActive,
			CreatedAt:         now,
		}
		id, err := store.Customers().Create(ctx, &c)
		if err != nil {
			return nil, fmt.Errorf("seed customer %q: %w", name, err)
		}
		out.CustomerIDs = append(out.CustomerIDs, id)
	}
	return out, nil
}
