// Oversell stress check: many buyers, one product, less stock than demand.
// Run against a throwaway database loaded with scripts/schema.sql.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/adapter/storage"
	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/core/service"
)

const (
	mysqlDSN     = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	initialStock = 20
	totalBuyers  = 50
	queueSize    = 100
)

func main() {
	ctx := context.Background()

	db, err := sqlx.Connect("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	ledger := storage.NewMySQLAdapter(db)

	product := &domain.Product{
		Name:  fmt.Sprintf("stress-item-%d", time.Now().Unix()),
		Price: decimal.RequireFromString("10.00"),
		Stock: initialStock,
	}
	if err := ledger.CreateProduct(ctx, product); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	buyers := make([]int64, 0, totalBuyers)
	cart := service.NewCartService(ledger)
	for i := 0; i < totalBuyers; i++ {
		account := &domain.Account{
			Username: fmt.Sprintf("stress-user-%d-%d", time.Now().Unix(), i),
			Balance:  decimal.RequireFromString("100.00"),
		}
		if err := ledger.CreateAccount(ctx, account); err != nil {
			log.Fatalf("failed to seed account: %v", err)
		}
		if err := cart.Add(ctx, account.ID, product.ID, 1); err != nil {
			log.Fatalf("failed to seed cart: %v", err)
		}
		buyers = append(buyers, account.ID)
	}

	checkout := service.NewCheckoutService(ledger, queueSize)
	defer checkout.Close()

	// Drain the events channel in background
	go func() {
		for range checkout.Events() {
		}
	}()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()
	for _, userID := range buyers {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := checkout.PlaceOrder(ctx, id); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(userID)
	}
	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Buyers:     %d\n", totalBuyers)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalBuyers-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", initialStock, totalBuyers-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalBuyers-initialStock, success, fail)
	}

	final, err := ledger.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", final.Stock)
	if final.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.Stock)
	}
}
