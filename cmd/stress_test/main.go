package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/grocery-store/internal/adapter/payment"
	"github.com/rl1809/grocery-store/internal/adapter/storage"
	"github.com/rl1809/grocery-store/internal/adapter/storage/memory"
	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/core/service"
	"github.com/rl1809/grocery-store/internal/port"
)

var (
	dsn          = flag.String("mysql", os.Getenv("MYSQL_DSN"), "MySQL DSN; empty uses the in-memory store")
	initialStock = flag.Int("stock", 20, "Initial stock of the contested product")
	buyers       = flag.Int("buyers", 50, "Number of concurrent checkouts")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	// sessions and idempotency keys stay in process for this run
	mem := memory.New()
	var store port.Store = mem
	if *dsn == "" {
		fmt.Println("Store:            memory")
	} else {
		db, err := sql.Open("mysql", *dsn)
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(*buyers + 10)
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		store = adapter
		fmt.Println("Store:            mysql")
	}

	deps := service.Deps{Logger: zap.NewNop()}
	engine := pricing.DefaultEngine()
	auth := service.NewAuthService(store, mem, service.AuthConfig{BcryptCost: bcrypt.MinCost}, deps)
	catalog := service.NewCatalogService(store, store, deps)
	cart := service.NewCartService(store, store, engine, deps)
	orders := service.NewOrderService(store, mem, payment.NewSandbox(decimal.NullDecimal{}), engine, deps)

	run := uuid.NewString()[:8]
	cat, err := catalog.CreateCategory(ctx, service.CategoryInput{Name: "Stress " + run})
	if err != nil {
		log.Fatalf("failed to create category: %v", err)
	}
	product, err := catalog.CreateProduct(ctx, service.ProductInput{
		Name:          "Contested item " + run,
		Price:         decimal.RequireFromString("1.99"),
		CategoryID:    cat.ID,
		StockQuantity: *initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	// every buyer fills a cart while stock is still available
	userIDs := make([]int64, *buyers)
	for i := range userIDs {
		name := fmt.Sprintf("stress-%s-%d", run, i)
		u, err := auth.Register(ctx, service.RegisterInput{
			Username:  name,
			Email:     name + "@example.com",
			Password:  "stress-password",
			FirstName: "Stress",
			LastName:  "Buyer",
		})
		if err != nil {
			log.Fatalf("failed to register buyer: %v", err)
		}
		if err := cart.Add(ctx, u.ID, product.ID, 1); err != nil {
			log.Fatalf("failed to fill cart: %v", err)
		}
		userIDs[i] = u.ID
	}

	var successCount, soldOutCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range userIDs {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := orders.PlaceOrder(ctx, service.PlaceOrderInput{
				UserID:          userID,
				PaymentMethod:   domain.PaymentMethodCard,
				DeliveryAddress: "1 Stress Ave",
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("unexpected checkout error: %v", err)
			}
		}(id)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	soldOut := int(soldOutCount.Load())
	other := int(otherCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Checkouts:  %d\n", *buyers)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", other)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	want := min(*initialStock, *buyers)
	if success == want && soldOut == *buyers-want {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d sold out\n", want, *buyers-want)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n", want, *buyers-want, success, soldOut)
	}

	final, err := store.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to reload product: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", final.StockQuantity)
	if final.StockQuantity == *initialStock-success && final.StockQuantity >= 0 {
		fmt.Println("PASS: No oversell")
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", *initialStock-success, final.StockQuantity)
		os.Exit(1)
	}
}
