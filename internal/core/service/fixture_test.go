package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/grocery-store/internal/adapter/storage/memory"
	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/port"
)

const adminEmail = "admin@grocery.test"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []port.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg port.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) byTemplate(template string) []port.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []port.Notification
	for _, m := range n.sent {
		if m.Template == template {
			out = append(out, m)
		}
	}
	return out
}

type fakePayments struct {
	mu        sync.Mutex
	decline   bool
	refundErr error
	charges   []decimal.Decimal
	refunds   []string
}

func (p *fakePayments) Charge(ctx context.Context, amount decimal.Decimal, reference string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decline {
		return "", errors.New("card declined")
	}
	p.charges = append(p.charges, amount)
	return "pay_" + uuid.NewString(), nil
}

func (p *fakePayments) Refund(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, token)
	return p.refundErr
}

// failingOrders wraps a store whose CreateOrder always fails.
type failingOrders struct {
	port.Store
}

func (failingOrders) CreateOrder(ctx context.Context, order *domain.Order) ([]domain.InventoryLog, error) {
	return nil, errors.New("connection reset")
}

type fixture struct {
	t        *testing.T
	store    *memory.Store
	notifier *recordingNotifier
	payments *fakePayments
	deps     Deps
	now      time.Time

	auth      *AuthService
	catalog   *CatalogService
	inventory *InventoryService
	cart      *CartService
	coupons   *CouponService
	orders    *OrderService
	reviews   *ReviewService
	search    *SearchService
	analytics *AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		notifier: &recordingNotifier{},
		payments: &fakePayments{},
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store = memory.New(memory.WithClock(clock))
	f.deps = Deps{Notifier: f.notifier, Clock: clock, AdminEmail: adminEmail}

	engine := pricing.DefaultEngine()
	f.auth = NewAuthService(f.store, f.store, AuthConfig{BaseURL: "http://shop.test", BcryptCost: bcrypt.MinCost}, f.deps)
	f.catalog = NewCatalogService(f.store, f.store, f.deps)
	f.inventory = NewInventoryService(f.store, f.deps)
	f.cart = NewCartService(f.store, f.store, engine, f.deps)
	f.coupons = NewCouponService(f.store, f.cart, f.deps)
	f.orders = NewOrderService(f.store, f.store, f.payments, engine, f.deps)
	f.reviews = NewReviewService(f.store, f.store, f.store, f.deps)
	f.search = NewSearchService(f.store, f.store, f.deps)
	f.analytics = NewAnalyticsService(f.store, f.deps)
	return f
}

func (f *fixture) user(name string) *domain.User {
	f.t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{
		Username:  name,
		Email:     name + "@example.com",
		Password:  "correct horse",
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) category(name string) *domain.Category {
	f.t.Helper()
	c, err := f.catalog.CreateCategory(context.Background(), CategoryInput{Name: name})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) product(categoryID int64, name, price string, stock int) *domain.Product {
	f.t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		CategoryID:    categoryID,
		StockQuantity: stock,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) coupon(in CouponInput) *domain.Coupon {
	f.t.Helper()
	c, err := f.coupons.Create(context.Background(), in)
	require.NoError(f.t, err)
	return c
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func nullMoney(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(money(s))
}
