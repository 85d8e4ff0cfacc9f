package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/storage"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/config"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logg := config.NewLogger("warn", cfg.LogFormat)

	var store port.Store
	if cfg.MySQLDSN != "" {
		db, err := sqlx.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		store = storage.NewMySQLAdapter(db)
	} else {
		store = storage.NewMemoryStore()
	}

	// Initialize catalog
	catalog := service.NewCatalogService(store, logg)
	item, err := catalog.CreateItem(ctx, service.CreateItemInput{
		Name:      "stress-item-" + uuid.NewString()[:8],
		Quantity:  initialStock,
		UnitPrice: decimal.NewFromInt(10),
	})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}
	customer, err := catalog.CreateCustomer(ctx, service.CreateCustomerInput{Name: "stress-customer"})
	if err != nil {
		log.Fatalf("failed to create customer: %v", err)
	}

	exec := service.NewTransactionExecutor(store, nil, logg)
	ledger := service.NewStockLedger(store, exec, nil, logg)
	sales := service.NewSalesService(store, exec, ledger, storage.NewLocalAdapter(), nil, logg)

	// Counters
	var successCount atomic.Int32
	var rejectedCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent sales
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := sales.Finalize(ctx, service.FinalizeInput{
				RequestID:     uuid.NewString(),
				CustomerID:    customer.ID,
				Lines:         []service.SaleLineInput{{ItemID: item.ID, Quantity: 1}},
				PaidAmount:    decimal.NewFromInt(10),
				PaymentMethod: "Cash",
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrIntegrity):
				rejectedCount.Add(1)
			default:
				failCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errored:          %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d sales succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	// Verify final stock
	finalStock, err := ledger.Quantity(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
