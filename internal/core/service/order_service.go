package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/observability"
	"github.com/rl1809/grocery-store/internal/port"
)

const (
	useCasePlaceOrder   = "order.place"
	useCaseUpdateStatus = "order.update_status"
	ordersPerPage       = 10
)

type OrderService struct {
	store    port.Store
	cache    port.CacheRepository
	payments port.PaymentProvider
	engine   pricing.Engine
	deps     Deps
	tracer   trace.Tracer
}

// NewOrderService wires the checkout pipeline. cache may be nil, in which
// case idempotency keys are ignored.
func NewOrderService(store port.Store, cache port.CacheRepository, payments port.PaymentProvider, engine pricing.Engine, deps Deps) *OrderService {
	return &OrderService{
		store:    store,
		cache:    cache,
		payments: payments,
		engine:   engine,
		deps:     deps.withDefaults(),
		tracer:   observability.Tracer("service/order"),
	}
}

type PlaceOrderInput struct {
	UserID              int64
	CouponCode          string
	PaymentMethod       domain.PaymentMethod
	DeliveryAddress     string
	DeliveryDate        *time.Time
	DeliveryTimeSlot    string
	SpecialInstructions string
	// IdempotencyKey makes retries of the same checkout safe.
	IdempotencyKey string
}

type Quote struct {
	Lines     []domain.CartLine
	Breakdown pricing.Breakdown
	Coupon    *domain.Coupon
}

// Quote prices the user's cart, applying couponCode when given.
func (s *OrderService) Quote(ctx context.Context, userID int64, couponCode string) (*Quote, error) {
	return s.prepare(ctx, userID, couponCode)
}

// prepare loads the cart, checks each line against current stock and prices
// it. Nothing is written.
func (s *OrderService) prepare(ctx context.Context, userID int64, couponCode string) (*Quote, error) {
	lines, err := s.store.ListCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, l := range lines {
		if !l.Product.IsAvailable {
			return nil, fmt.Errorf("%s: %w", l.Product.Name, domain.ErrProductUnavailable)
		}
		if l.Item.Quantity > l.Product.StockQuantity {
			return nil, fmt.Errorf("%s: %w", l.Product.Name, domain.ErrInsufficientStock)
		}
	}

	priced := pricing.LinesFromCart(lines)
	q := &Quote{Lines: lines}
	discount := decimal.Zero

	if code := domain.NormalizeCouponCode(couponCode); code != "" {
		c, err := s.store.GetCouponByCode(ctx, code)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get coupon: %w", err)
		}
		res := pricing.EvaluateCoupon(c, pricing.Subtotal(priced), s.deps.now())
		if !res.Valid {
			return nil, domain.NewValidationError("coupon_code", res.Message)
		}
		q.Coupon = c
		discount = res.Discount
	}

	q.Breakdown = s.engine.Quote(priced, discount)
	return q, nil
}

func (in PlaceOrderInput) validate() error {
	if in.UserID <= 0 {
		return domain.ErrUnauthenticated
	}
	if !in.PaymentMethod.Valid() {
		return domain.NewValidationError("payment_method", "must be card or cash_on_delivery")
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return domain.NewValidationError("delivery_address", "is required")
	}
	return nil
}

// PlaceOrder turns the user's cart into an order. Card payments are charged
// before anything is written; if persisting then fails the charge is
// refunded. Notifications after commit never fail the call.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "UC.PlaceOrder",
		trace.WithAttributes(
			attribute.String("use_case", useCasePlaceOrder),
			attribute.Int64("order.user_id", in.UserID),
			attribute.String("order.payment_method", string(in.PaymentMethod)),
		),
	)
	start := time.Now()
	logger := s.deps.logger(ctx).With(
		zap.String("use_case", useCasePlaceOrder),
		zap.Int64("user_id", in.UserID),
	)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Info("checkout_rejected", zap.Error(err), zap.Duration("latency", time.Since(start)))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.deps.Metrics.ObserveUseCase(useCasePlaceOrder, outcome, time.Since(start))
	}()

	if err := in.validate(); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" && s.cache != nil {
		key := fmt.Sprintf("checkout:%d:%s", in.UserID, in.IdempotencyKey)
		claimed, claimErr := s.cache.SetIdempotency(ctx, key)
		if claimErr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", claimErr)
		}
		if !claimed {
			return nil, domain.ErrDuplicateRequest
		}
		defer func() {
			// a failed attempt may be retried with the same key
			if err != nil {
				if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
					logger.Warn("idempotency_release_failed", zap.Error(relErr))
				}
			}
		}()
	}

	q, err := s.prepare(ctx, in.UserID, in.CouponCode)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("order.lines", len(q.Lines)),
		attribute.String("order.total", q.Breakdown.Total.StringFixed(2)),
	)

	now := s.deps.now()
	order = s.buildOrder(in, q, now)

	if in.PaymentMethod == domain.PaymentMethodCard {
		token, err := s.payments.Charge(ctx, order.TotalAmount, order.OrderNumber)
		if err != nil {
			logger.Warn("payment_declined", zap.String("order_number", order.OrderNumber), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
		}
		order.PaymentToken = token
		order.PaymentStatus = domain.PaymentStatusPaid
		span.AddEvent("payment.charged")
	}

	logs, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		if order.PaymentToken != "" {
			s.refund(ctx, logger, order)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	logger.Info("checkout_committed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	span.AddEvent("order.created", trace.WithAttributes(attribute.Int64("order.id", order.ID)))

	s.afterCommit(ctx, order, q.Lines, logs)
	return order, nil
}

func (s *OrderService) buildOrder(in PlaceOrderInput, q *Quote, now time.Time) *domain.Order {
	b := q.Breakdown
	order := &domain.Order{
		OrderNumber:         domain.NewOrderNumber(now),
		UserID:              in.UserID,
		Subtotal:            b.Subtotal,
		TaxAmount:           b.Tax,
		DeliveryFee:         b.Delivery,
		DiscountAmount:      b.Discount,
		TotalAmount:         b.Total,
		Status:              domain.OrderStatusPending,
		PaymentStatus:       domain.PaymentStatusPending,
		PaymentMethod:       in.PaymentMethod,
		DeliveryAddress:     strings.TrimSpace(in.DeliveryAddress),
		DeliveryDate:        in.DeliveryDate,
		DeliveryTimeSlot:    in.DeliveryTimeSlot,
		SpecialInstructions: in.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
		Items:               make([]domain.OrderItem, 0, len(q.Lines)),
	}
	if q.Coupon != nil {
		id := q.Coupon.ID
		order.CouponID = &id
		order.CouponCode = q.Coupon.Code
	}
	for _, l := range q.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Item.Quantity,
			Price:       l.Product.Price,
			Total:       l.Total(),
		})
	}
	return order
}

func (s *OrderService) refund(ctx context.Context, logger *zap.Logger, order *domain.Order) {
	if err := s.payments.Refund(context.WithoutCancel(ctx), order.PaymentToken); err != nil {
		logger.Error("refund_failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("payment_token", order.PaymentToken),
			zap.Error(err),
		)
		return
	}
	logger.Info("payment_refunded", zap.String("order_number", order.OrderNumber))
}

func (s *OrderService) afterCommit(ctx context.Context, order *domain.Order, lines []domain.CartLine, logs []domain.InventoryLog) {
	if user, err := s.store.GetUser(ctx, order.UserID); err == nil {
		s.deps.notify(ctx, port.Notification{
			To:       user.Email,
			Subject:  "Order Confirmation - " + order.OrderNumber,
			Template: port.TemplateOrderConfirmation,
			Data: map[string]any{
				"first_name":   user.FirstName,
				"order_number": order.OrderNumber,
				"items":        order.Items,
				"subtotal":     order.Subtotal.StringFixed(2),
				"tax":          order.TaxAmount.StringFixed(2),
				"delivery_fee": order.DeliveryFee.StringFixed(2),
				"discount":     order.DiscountAmount.StringFixed(2),
				"total":        order.TotalAmount.StringFixed(2),
				"address":      order.DeliveryAddress,
			},
		})
	} else {
		s.deps.logger(ctx).Warn("order_confirmation_skipped", zap.Int64("user_id", order.UserID), zap.Error(err))
	}

	products := make(map[int64]domain.Product, len(lines))
	for _, l := range lines {
		products[l.Product.ID] = l.Product
	}
	for _, log := range logs {
		p, ok := products[log.ProductID]
		if !ok {
			continue
		}
		p.StockQuantity = log.NewQuantity
		s.deps.alertLowStock(ctx, &p)
	}
}

// GetOrder returns an order visible to the caller. Orders of other users
// look missing unless the caller is an admin.
func (s *OrderService) GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if !isAdmin && order.UserID != userID {
		return nil, fmt.Errorf("get order %d: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64, page, perPage int) ([]domain.Order, domain.Pagination, error) {
	p := domain.NewPage(page, perPage, ordersPerPage)
	orders, total, err := s.store.ListOrders(ctx, userID, p)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, domain.NewPagination(p, total), nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling puts the
// items back in stock and refunds a card payment.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus, trackingNumber string) (_ *domain.Order, err error) {
	defer s.deps.track(useCaseUpdateStatus)(&err)

	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status")
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, status, domain.ErrInvalidTransition)
	}
	// A paid order is refunded before it is cancelled; the store then marks
	// it refunded alongside the restock.
	if status == domain.OrderStatusCancelled && order.PaymentStatus == domain.PaymentStatusPaid && order.PaymentToken != "" {
		if err := s.payments.Refund(ctx, order.PaymentToken); err != nil {
			return nil, fmt.Errorf("refund order %s: %v: %w", order.OrderNumber, err, domain.ErrPaymentFailed)
		}
		s.deps.logger(ctx).Info("payment_refunded", zap.String("order_number", order.OrderNumber))
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, status, trackingNumber); err != nil {
		return nil, fmt.Errorf("update order %d: %w", orderID, err)
	}
	previous := order.Status

	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order %d: %w", orderID, err)
	}
	s.deps.logger(ctx).Info("order_status_changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)

	if user, err := s.store.GetUser(ctx, order.UserID); err == nil {
		s.deps.notify(ctx, port.Notification{
			To:       user.Email,
			Subject:  fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
			Template: port.TemplateOrderStatusUpdate,
			Data: map[string]any{
				"first_name":      user.FirstName,
				"order_number":    order.OrderNumber,
				"status":          string(order.Status),
				"tracking_number": order.TrackingNumber,
			},
		})
	}
	return order, nil
}
