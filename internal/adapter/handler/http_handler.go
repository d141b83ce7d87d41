package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/service"
	"github.com/rl1809/grocery-store/internal/observability"
	"github.com/rl1809/grocery-store/internal/port"
)

// Services groups the use cases exposed over HTTP.
type Services struct {
	Auth      *service.AuthService
	Catalog   *service.CatalogService
	Inventory *service.InventoryService
	Cart      *service.CartService
	Coupons   *service.CouponService
	Orders    *service.OrderService
	Reviews   *service.ReviewService
	Search    *service.SearchService
	Analytics *service.AnalyticsService
}

type RateLimit struct {
	Limit  int
	Window time.Duration
}

type HTTPConfig struct {
	CookieName     string
	SecureCookie   bool
	Register       RateLimit
	Login          RateLimit
	ForgotPassword RateLimit
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For header is
	// honoured when resolving the client address for rate limits.
	TrustedProxies []string
}

type HTTPHandler struct {
	svc     Services
	limiter port.CacheRepository
	cfg     HTTPConfig
	proxies []netip.Prefix
	log     *zap.Logger
	metrics *observability.Metrics
}

func NewHTTPHandler(svc Services, limiter port.CacheRepository, cfg HTTPConfig, logger *zap.Logger, metrics *observability.Metrics) *HTTPHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = "grocery_session"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		svc:     svc,
		limiter: limiter,
		cfg:     cfg,
		proxies: ParseTrustedProxies(cfg.TrustedProxies),
		log:     logger.With(zap.String("component", "http_server")),
		metrics: metrics,
	}
}

func (h *HTTPHandler) Router() http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "GET /health", h.HealthCheck)

	h.handle(mux, "POST /api/auth/register", h.limit("register", h.cfg.Register, h.Register))
	h.handle(mux, "POST /api/auth/login", h.limit("login", h.cfg.Login, h.Login))
	h.handle(mux, "POST /api/auth/logout", h.Logout)
	h.handle(mux, "POST /api/auth/forgot-password", h.limit("forgot_password", h.cfg.ForgotPassword, h.ForgotPassword))
	h.handle(mux, "POST /api/auth/reset-password", h.ResetPassword)
	h.handle(mux, "POST /api/auth/verify-email", h.VerifyEmail)
	h.handle(mux, "GET /api/auth/me", h.requireAuth(h.Me))

	h.handle(mux, "GET /api/products", h.ListProducts)
	h.handle(mux, "GET /api/products/{id}", h.GetProduct)
	h.handle(mux, "GET /api/products/{id}/reviews", h.ListReviews)
	h.handle(mux, "GET /api/categories", h.ListCategories)
	h.handle(mux, "GET /api/search", h.Search)
	h.handle(mux, "GET /api/search/suggestions", h.Suggestions)

	h.handle(mux, "GET /api/cart", h.requireAuth(h.GetCart))
	h.handle(mux, "POST /api/cart/add", h.requireAuth(h.AddToCart))
	h.handle(mux, "POST /api/cart/update", h.requireAuth(h.UpdateCart))
	h.handle(mux, "POST /api/cart/remove", h.requireAuth(h.RemoveFromCart))
	h.handle(mux, "GET /api/wishlist", h.requireAuth(h.GetWishlist))
	h.handle(mux, "POST /api/wishlist/add", h.requireAuth(h.AddToWishlist))
	h.handle(mux, "POST /api/wishlist/remove", h.requireAuth(h.RemoveFromWishlist))

	h.handle(mux, "POST /api/orders/quote", h.requireAuth(h.QuoteOrder))
	h.handle(mux, "POST /api/orders", h.requireAuth(h.PlaceOrder))
	h.handle(mux, "GET /api/orders", h.requireAuth(h.ListOrders))
	h.handle(mux, "GET /api/orders/{id}", h.requireAuth(h.GetOrder))
	h.handle(mux, "POST /api/reviews", h.requireAuth(h.AddReview))
	h.handle(mux, "POST /api/coupons/validate", h.requireAuth(h.ValidateCoupon))

	h.handle(mux, "POST /api/admin/categories", h.requireAdmin(h.CreateCategory))
	h.handle(mux, "POST /api/admin/products", h.requireAdmin(h.CreateProduct))
	h.handle(mux, "PUT /api/admin/products/{id}", h.requireAdmin(h.UpdateProduct))
	h.handle(mux, "POST /api/admin/products/{id}/stock", h.requireAdmin(h.AdjustStock))
	h.handle(mux, "GET /api/admin/products/{id}/inventory", h.requireAdmin(h.InventoryLogs))
	h.handle(mux, "POST /api/admin/coupons", h.requireAdmin(h.CreateCoupon))
	h.handle(mux, "GET /api/admin/coupons", h.requireAdmin(h.ListCoupons))
	h.handle(mux, "PUT /api/admin/orders/{id}/status", h.requireAdmin(h.UpdateOrderStatus))
	h.handle(mux, "GET /api/admin/analytics/dashboard", h.requireAdmin(h.Dashboard))

	return h.recoverPanics(mux)
}

// handle registers pattern wrapped as
// trace -> request logger -> metrics -> access log -> session -> handler.
func (h *HTTPHandler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	var next http.Handler = h.withSession(fn)
	next = h.withAccessLog(next)
	next = h.withHTTPMetrics(pattern, next)
	next = h.withRequestLogger(next)
	next = h.withTrace(pattern, next)
	mux.Handle(pattern, next)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("invalid request body")
	}
	return nil
}

// writeDomainError maps service errors onto status codes and client
// messages. Unexpected errors are logged and hidden behind a 500.
func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, domain.ErrAccountDisabled):
		writeError(w, http.StatusBadRequest, "Account is deactivated")
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, domain.ErrProductUnavailable):
		writeError(w, http.StatusBadRequest, "Product not available")
	case errors.Is(err, domain.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, domain.ErrCouponExhausted):
		writeError(w, http.StatusBadRequest, "Coupon usage limit reached")
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "Invalid order status transition")
	case errors.Is(err, domain.ErrPaymentFailed):
		writeError(w, http.StatusPaymentRequired, "Payment failed")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrCartChanged):
		writeError(w, http.StatusConflict, "Cart changed during checkout, please review your cart")
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "Duplicate request")
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "Already exists")
	default:
		observability.FromContextOr(r.Context(), h.log).Error("request_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(r *http.Request, key string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return n
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func retryAfter(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
