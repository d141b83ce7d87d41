package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/grocery_test?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func suffix() string {
	return uuid.NewString()[:8]
}

func seedUser(t *testing.T, ctx context.Context, adapter *MySQLAdapter) *domain.User {
	t.Helper()
	s := suffix()
	u := &domain.User{
		Username:     "user-" + s,
		Email:        "user-" + s + "@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
	}
	if err := adapter.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, ctx context.Context, adapter *MySQLAdapter, stock int, price string) *domain.Product {
	t.Helper()
	cat := &domain.Category{Name: "cat-" + suffix(), IsActive: true}
	if err := adapter.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	p := &domain.Product{
		Name:          "product-" + suffix(),
		Price:         decimal.RequireFromString(price),
		CategoryID:    cat.ID,
		StockQuantity: stock,
		MinStockLevel: 2,
		IsAvailable:   true,
		Unit:          "each",
	}
	if err := adapter.CreateProduct(ctx, p); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return p
}

func addToCart(t *testing.T, ctx context.Context, adapter *MySQLAdapter, userID, productID int64, qty int) {
	t.Helper()
	if err := adapter.SaveCartItem(ctx, &domain.CartItem{UserID: userID, ProductID: productID, Quantity: qty}); err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
}

func newOrder(userID int64, p *domain.Product, qty int) *domain.Order {
	total := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	return &domain.Order{
		OrderNumber:     domain.NewOrderNumber(time.Now()),
		UserID:          userID,
		Subtotal:        total,
		TaxAmount:       decimal.Zero,
		DeliveryFee:     decimal.Zero,
		DiscountAmount:  decimal.Zero,
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPaid,
		PaymentMethod:   domain.PaymentMethodCard,
		DeliveryAddress: "1 Main St",
		Items: []domain.OrderItem{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			Price:       p.Price,
			Total:       total,
		}},
	}
}

func stockOf(t *testing.T, ctx context.Context, adapter *MySQLAdapter, id int64) int {
	t.Helper()
	p, err := adapter.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	return p.StockQuantity
}

func TestCreateOrder_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	user := seedUser(t, ctx, adapter)
	product := seedProduct(t, ctx, adapter, 10, "4.50")
	addToCart(t, ctx, adapter, user.ID, product.ID, 3)

	order := newOrder(user.ID, product, 3)
	logs, err := adapter.CreateOrder(ctx, order)
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.ID == 0 || order.Items[0].ID == 0 {
		t.Error("expected order and item ids to be assigned")
	}
	if len(logs) != 1 || logs[0].PreviousQuantity != 10 || logs[0].NewQuantity != 7 {
		t.Errorf("unexpected inventory logs: %+v", logs)
	}
	if logs[0].ChangeType != domain.ChangeSale {
		t.Errorf("expected sale log, got %s", logs[0].ChangeType)
	}

	if stock := stockOf(t, ctx, adapter, product.ID); stock != 7 {
		t.Errorf("expected stock 7, got %d", stock)
	}
	cart, err := adapter.ListCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("list cart failed: %v", err)
	}
	if len(cart) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(cart))
	}

	got, err := adapter.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("13.50")) {
		t.Errorf("expected total 13.50, got %s", got.TotalAmount)
	}
	if len(got.Items) != 1 || got.Items[0].ProductName != product.Name {
		t.Errorf("unexpected items: %+v", got.Items)
	}

	bought, err := adapter.HasPurchased(ctx, user.ID, product.ID)
	if err != nil {
		t.Fatalf("has purchased failed: %v", err)
	}
	if !bought {
		t.Error("expected purchase to be recorded")
	}
}

func TestCreateOrder_CartChangedRollsBack(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	user := seedUser(t, ctx, adapter)
	product := seedProduct(t, ctx, adapter, 10, "2.00")
	addToCart(t, ctx, adapter, user.ID, product.ID, 2)

	// priced for 3 while the cart holds 2
	_, err := adapter.CreateOrder(ctx, newOrder(user.ID, product, 3))
	if !errors.Is(err, domain.ErrCartChanged) {
		t.Fatalf("expected ErrCartChanged, got: %v", err)
	}

	if stock := stockOf(t, ctx, adapter, product.ID); stock != 10 {
		t.Errorf("expected stock rolled back to 10, got %d", stock)
	}
	var orders int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, user.ID).Scan(&orders)
	if orders != 0 {
		t.Errorf("expected no orders, got %d", orders)
	}
	item, err := adapter.GetCartItem(ctx, user.ID, product.ID)
	if err != nil || item.Quantity != 2 {
		t.Errorf("expected cart line untouched, got %+v, %v", item, err)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	user := seedUser(t, ctx, adapter)
	product := seedProduct(t, ctx, adapter, 1, "2.00")
	addToCart(t, ctx, adapter, user.ID, product.ID, 2)

	_, err := adapter.CreateOrder(ctx, newOrder(user.ID, product, 2))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if stock := stockOf(t, ctx, adapter, product.ID); stock != 1 {
		t.Errorf("expected stock 1, got %d", stock)
	}
}

func TestCreateOrder_CouponUsageLimit(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	limit := 1
	coupon := &domain.Coupon{
		Code:           "ONCE" + suffix(),
		DiscountType:   domain.DiscountFixed,
		DiscountValue:  decimal.NewFromInt(1),
		MinOrderAmount: decimal.Zero,
		UsageLimit:     &limit,
		IsActive:       true,
		ValidFrom:      time.Now().Add(-time.Hour),
	}
	if err := adapter.CreateCoupon(ctx, coupon); err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	product := seedProduct(t, ctx, adapter, 10, "5.00")

	for i, want := range []error{nil, domain.ErrCouponExhausted} {
		user := seedUser(t, ctx, adapter)
		addToCart(t, ctx, adapter, user.ID, product.ID, 1)
		order := newOrder(user.ID, product, 1)
		order.CouponID = &coupon.ID
		order.CouponCode = coupon.Code

		_, err := adapter.CreateOrder(ctx, order)
		if !errors.Is(err, want) {
			t.Fatalf("order %d: expected %v, got %v", i, want, err)
		}
	}

	got, err := adapter.GetCouponByCode(ctx, coupon.Code)
	if err != nil {
		t.Fatalf("get coupon failed: %v", err)
	}
	if got.UsedCount != 1 {
		t.Errorf("expected used count 1, got %d", got.UsedCount)
	}
	if stock := stockOf(t, ctx, adapter, product.ID); stock != 9 {
		t.Errorf("expected stock 9 after rejected second order, got %d", stock)
	}
}

// Many buyers race for a product with little stock; exactly the stock
// count of orders may commit.
func TestCreateOrder_ConcurrentNoOversell(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	initialStock := 10
	totalRequests := 20
	product := seedProduct(t, ctx, adapter, initialStock, "1.00")

	users := make([]*domain.User, totalRequests)
	for i := range users {
		users[i] = seedUser(t, ctx, adapter)
		addToCart(t, ctx, adapter, users[i].ID, product.ID, 1)
	}

	var successCount, stockoutCount atomic.Int32
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := adapter.CreateOrder(ctx, newOrder(userID, product, 1))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				stockoutCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful orders, got %d", initialStock, successCount.Load())
	}
	if stockoutCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d stockouts, got %d", totalRequests-initialStock, stockoutCount.Load())
	}
	if stock := stockOf(t, ctx, adapter, product.ID); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}

	var orderCount int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE product_id = ?`, product.ID).Scan(&orderCount)
	if orderCount != initialStock {
		t.Errorf("expected %d order items in MySQL, got %d", initialStock, orderCount)
	}
}

func TestUpdateOrderStatus_CancelRestocks(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	user := seedUser(t, ctx, adapter)
	product := seedProduct(t, ctx, adapter, 5, "3.00")
	addToCart(t, ctx, adapter, user.ID, product.ID, 2)
	order := newOrder(user.ID, product, 2)
	if _, err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusShipped, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for stale from-status, got: %v", err)
	}

	if err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if stock := stockOf(t, ctx, adapter, product.ID); stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", stock)
	}

	logs, err := adapter.ListInventoryLogs(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	if len(logs) != 2 || logs[0].ChangeType != domain.ChangeAdjustment || logs[0].QuantityChange != 2 {
		t.Errorf("unexpected inventory logs: %+v", logs)
	}

	got, _ := adapter.GetOrder(ctx, order.ID)
	if got.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.PaymentStatus != domain.PaymentStatusRefunded {
		t.Errorf("expected refunded, got %s", got.PaymentStatus)
	}
	if purchased, _ := adapter.HasPurchased(ctx, user.ID, product.ID); purchased {
		t.Errorf("expected cancelled order not to count as a purchase")
	}

	err = adapter.UpdateOrderStatus(ctx, 0, domain.OrderStatusPending, domain.OrderStatusConfirmed, "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	product := seedProduct(t, ctx, adapter, 3, "1.00")

	_, err := adapter.AdjustStock(ctx, domain.StockChange{ProductID: product.ID, Delta: -4, ChangeType: domain.ChangeExpired})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}

	log, err := adapter.AdjustStock(ctx, domain.StockChange{ProductID: product.ID, Delta: 7, ChangeType: domain.ChangeRestock, Reason: "delivery"})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if log.PreviousQuantity != 3 || log.NewQuantity != 10 {
		t.Errorf("unexpected log: %+v", log)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	user := seedUser(t, ctx, adapter)

	dup := &domain.User{Username: user.Username, Email: "other-" + suffix() + "@example.com", PasswordHash: "x"}
	if err := adapter.CreateUser(ctx, dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got: %v", err)
	}

	got, err := adapter.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %d, got %d", user.ID, got.ID)
	}

	if _, err := adapter.GetUserByResetToken(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty token, got: %v", err)
	}
}

func TestListProducts_FiltersAndPaging(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	cat := &domain.Category{Name: "filter-" + suffix(), IsActive: true}
	if err := adapter.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	for i, price := range []string{"1.00", "2.50", "4.00"} {
		p := &domain.Product{
			Name:          fmt.Sprintf("Apple %d", i),
			Price:         decimal.RequireFromString(price),
			CategoryID:    cat.ID,
			StockQuantity: i,
			MinStockLevel: 1,
			IsAvailable:   true,
		}
		if err := adapter.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}

	products, total, err := adapter.ListProducts(ctx, domain.ProductFilter{
		CategoryID:  cat.ID,
		Terms:       []string{"apple"},
		InStockOnly: true,
		Sort:        domain.SortPriceHigh,
		Page:        domain.Page{Number: 1, PerPage: 1},
	})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 in-stock matches, got %d", total)
	}
	if len(products) != 1 || !products[0].Price.Equal(decimal.RequireFromString("4.00")) {
		t.Errorf("expected most expensive product first, got %+v", products)
	}
	if products[0].CategoryName != cat.Name {
		t.Errorf("expected category name %q, got %q", cat.Name, products[0].CategoryName)
	}
}
