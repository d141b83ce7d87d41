package port

import (
	"context"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

type UserRepository interface {
	// CreateUser returns domain.ErrDuplicate when username or email is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

type CatalogRepository interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) error

	// ListProducts returns one page of available products matching the
	// filter and the total match count.
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error

	// AdjustStock applies the delta only if stock stays non-negative,
	// otherwise returns domain.ErrInsufficientStock.
	AdjustStock(ctx context.Context, change domain.StockChange) (*domain.InventoryLog, error)
	ListInventoryLogs(ctx context.Context, productID int64, limit int) ([]domain.InventoryLog, error)
}

type CartRepository interface {
	ListCart(ctx context.Context, userID int64) ([]domain.CartLine, error)
	GetCartItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error)
	// SaveCartItem inserts or replaces the quantity for (user, product).
	SaveCartItem(ctx context.Context, item *domain.CartItem) error
	DeleteCartItem(ctx context.Context, userID, productID int64) error

	ListWishlist(ctx context.Context, userID int64) ([]domain.WishlistEntry, error)
	AddWishlistItem(ctx context.Context, item *domain.WishlistItem) error
	DeleteWishlistItem(ctx context.Context, userID, productID int64) error
}

type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	CreateCoupon(ctx context.Context, coupon *domain.Coupon) error
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
}

type OrderRepository interface {
	// CreateOrder persists the order and its items in one transaction:
	// stock is decremented per item only while it stays non-negative, the
	// coupon is redeemed only below its usage limit and exactly the purchased
	// cart rows are deleted. Any failure rolls everything back.
	CreateOrder(ctx context.Context, order *domain.Order) ([]domain.InventoryLog, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64, page domain.Page) ([]domain.Order, int, error)
	// UpdateOrderStatus moves order from one status to another; when the new
	// status is cancelled the items are restocked and a paid order is marked
	// refunded in the same transaction.
	UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus, trackingNumber string) error
	HasPurchased(ctx context.Context, userID, productID int64) (bool, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *domain.Review) error
	ListReviews(ctx context.Context, productID int64, sort domain.ReviewSort, page domain.Page) ([]domain.Review, int, error)
}

type SearchRepository interface {
	LogSearch(ctx context.Context, entry domain.SearchLog) error
	Suggest(ctx context.Context, query string, limit int) ([]domain.Suggestion, error)
}

type AnalyticsRepository interface {
	Dashboard(ctx context.Context, since time.Time) (*domain.Dashboard, error)
}

// Store groups every repository one backend provides.
type Store interface {
	UserRepository
	CatalogRepository
	CartRepository
	CouponRepository
	OrderRepository
	ReviewRepository
	SearchRepository
	AnalyticsRepository
}
