// Package memory is an in-process implementation of every storage port. It
// backs the service tests and single-node dev runs.
package memory

import (
	"sync"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

type pairKey struct {
	userID    int64
	productID int64
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// Store keeps all tables behind one mutex so multi-row operations such as
// checkout are atomic the same way a database transaction is.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	users         map[int64]*domain.User
	categories    map[int64]*domain.Category
	products      map[int64]*domain.Product
	cart          map[pairKey]*domain.CartItem
	wishlist      map[pairKey]*domain.WishlistItem
	coupons       map[int64]*domain.Coupon
	orders        map[int64]*domain.Order
	reviews       map[int64]*domain.Review
	searches      []domain.SearchLog
	inventoryLogs []domain.InventoryLog

	sessions    map[string]domain.Session
	idempotency map[string]time.Time
	counters    map[string]windowCounter
	idemTTL     time.Duration
}

type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		users:       make(map[int64]*domain.User),
		categories:  make(map[int64]*domain.Category),
		products:    make(map[int64]*domain.Product),
		cart:        make(map[pairKey]*domain.CartItem),
		wishlist:    make(map[pairKey]*domain.WishlistItem),
		coupons:     make(map[int64]*domain.Coupon),
		orders:      make(map[int64]*domain.Order),
		reviews:     make(map[int64]*domain.Review),
		sessions:    make(map[string]domain.Session),
		idempotency: make(map[string]time.Time),
		counters:    make(map[string]windowCounter),
		idemTTL:     24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextID must be called with mu held.
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	return &clone
}

func cloneProduct(p *domain.Product) *domain.Product {
	clone := *p
	return &clone
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Items = append([]domain.OrderItem(nil), o.Items...)
	return &clone
}

var (
	_ port.Store           = (*Store)(nil)
	_ port.CacheRepository = (*Store)(nil)
	_ port.SessionStore    = (*Store)(nil)
)
