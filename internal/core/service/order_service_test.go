package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/port"
)

func checkout(userID int64) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:          userID,
		PaymentMethod:   domain.PaymentMethodCard,
		DeliveryAddress: "1 Market St",
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")
	cat := f.category("Dairy")
	milk := f.product(cat.ID, "Milk", "3.49", 40)
	eggs := f.product(cat.ID, "Eggs", "4.99", 40)

	require.NoError(t, f.cart.Add(ctx, u.ID, milk.ID, 2))
	require.NoError(t, f.cart.Add(ctx, u.ID, eggs.ID, 1))

	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)

	// 2*3.49 + 4.99 = 11.97; tax 0.96; delivery 5.99
	requireMoney(t, "11.97", order.Subtotal)
	requireMoney(t, "0.96", order.TaxAmount)
	requireMoney(t, "5.99", order.DeliveryFee)
	requireMoney(t, "18.92", order.TotalAmount)
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.TaxAmount).Add(order.DeliveryFee).Sub(order.DiscountAmount)))
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.PaymentToken)
	assert.Regexp(t, `^ORD20240601[0-9A-F]{8}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)

	view, err := f.cart.View(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	p, err := f.store.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 38, p.StockQuantity)

	confirmations := f.notifier.byTemplate(port.TemplateOrderConfirmation)
	require.Len(t, confirmations, 1)
	assert.Equal(t, "alice@example.com", confirmations[0].To)
	assert.Empty(t, f.notifier.byTemplate(port.TemplateLowStockAlert))
}

func TestPlaceOrder_FreezesPricePerLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("bob")
	cat := f.category("Bakery")
	bread := f.product(cat.ID, "Bread", "2.00", 30)
	require.NoError(t, f.cart.Add(ctx, u.ID, bread.ID, 3))

	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)

	_, err = f.catalog.UpdateProduct(ctx, bread.ID, ProductInput{Name: "Bread", Price: money("9.99"), CategoryID: cat.ID})
	require.NoError(t, err)

	stored, err := f.orders.GetOrder(ctx, u.ID, false, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	requireMoney(t, "2.00", stored.Items[0].Price)
	requireMoney(t, "6.00", stored.Items[0].Total)
	assert.Equal(t, 3, stored.Items[0].Quantity)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	u := f.user("carol")

	_, err := f.orders.PlaceOrder(context.Background(), checkout(u.ID))
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Empty(t, f.payments.charges)
}

func TestPlaceOrder_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	in := checkout(1)
	in.PaymentMethod = "bitcoin"
	_, err := f.orders.PlaceOrder(context.Background(), in)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "payment_method", ve.Field)

	in = checkout(1)
	in.DeliveryAddress = "  "
	_, err = f.orders.PlaceOrder(context.Background(), in)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "delivery_address", ve.Field)
}

func TestPlaceOrder_PaymentDeclinedPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("dave")
	cat := f.category("Produce")
	apple := f.product(cat.ID, "Apple", "1.00", 20)
	require.NoError(t, f.cart.Add(ctx, u.ID, apple.ID, 5))
	f.payments.decline = true

	_, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.ErrorIs(t, err, domain.ErrPaymentFailed)

	orders, _, err := f.orders.ListOrders(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
	p, _ := f.store.GetProduct(ctx, apple.ID)
	assert.Equal(t, 20, p.StockQuantity)
	view, _ := f.cart.View(ctx, u.ID)
	assert.Len(t, view.Lines, 1)
}

func TestPlaceOrder_RefundsWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("erin")
	cat := f.category("Produce")
	pear := f.product(cat.ID, "Pear", "1.50", 20)
	require.NoError(t, f.cart.Add(ctx, u.ID, pear.ID, 2))

	svc := NewOrderService(failingOrders{f.store}, f.store, f.payments, pricing.DefaultEngine(), f.deps)
	_, err := svc.PlaceOrder(ctx, checkout(u.ID))
	require.Error(t, err)

	require.Len(t, f.payments.charges, 1)
	require.Len(t, f.payments.refunds, 1)
	assert.Empty(t, f.notifier.byTemplate(port.TemplateOrderConfirmation))
}

func TestPlaceOrder_CashOnDeliveryIsNotCharged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("frank")
	cat := f.category("Pantry")
	rice := f.product(cat.ID, "Rice", "12.00", 20)
	require.NoError(t, f.cart.Add(ctx, u.ID, rice.ID, 5))

	in := checkout(u.ID)
	in.PaymentMethod = domain.PaymentMethodCashOnDelivery
	order, err := f.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, order.PaymentToken)
	assert.Empty(t, f.payments.charges)
	requireMoney(t, "0", order.DeliveryFee)
}

func TestPlaceOrder_AppliesCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("gina")
	cat := f.category("Meat")
	steak := f.product(cat.ID, "Steak", "25.00", 30)
	require.NoError(t, f.cart.Add(ctx, u.ID, steak.ID, 4))

	limit := 5
	c := f.coupon(CouponInput{
		Code:              "save20",
		DiscountType:      domain.DiscountPercentage,
		DiscountValue:     money("20"),
		MaxDiscountAmount: nullMoney("15"),
		UsageLimit:        &limit,
	})

	in := checkout(u.ID)
	in.CouponCode = " Save20 "
	order, err := f.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	// 20% of 100 capped at 15
	requireMoney(t, "15.00", order.DiscountAmount)
	requireMoney(t, "8.00", order.TaxAmount)
	requireMoney(t, "93.00", order.TotalAmount)
	require.NotNil(t, order.CouponID)
	assert.Equal(t, c.ID, *order.CouponID)

	stored, err := f.store.GetCouponByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
}

func TestPlaceOrder_RejectsInvalidCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("hank")
	cat := f.category("Meat")
	chicken := f.product(cat.ID, "Chicken", "8.00", 30)
	require.NoError(t, f.cart.Add(ctx, u.ID, chicken.ID, 1))
	f.coupon(CouponInput{Code: "BIG", DiscountType: domain.DiscountFixed, DiscountValue: money("5"), MinOrderAmount: money("50")})

	in := checkout(u.ID)
	in.CouponCode = "BIG"
	_, err := f.orders.PlaceOrder(ctx, in)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Minimum order amount is $50.00", ve.Message)
	assert.Empty(t, f.payments.charges)
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("ivy")
	cat := f.category("Produce")
	kiwi := f.product(cat.ID, "Kiwi", "0.50", 50)
	require.NoError(t, f.cart.Add(ctx, u.ID, kiwi.ID, 2))

	in := checkout(u.ID)
	in.IdempotencyKey = "req-1"
	_, err := f.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	require.NoError(t, f.cart.Add(ctx, u.ID, kiwi.ID, 2))
	_, err = f.orders.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
}

func TestPlaceOrder_FailedAttemptReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("jack")
	cat := f.category("Produce")
	lime := f.product(cat.ID, "Lime", "0.40", 50)
	require.NoError(t, f.cart.Add(ctx, u.ID, lime.ID, 3))
	f.payments.decline = true

	in := checkout(u.ID)
	in.IdempotencyKey = "retry-me"
	_, err := f.orders.PlaceOrder(ctx, in)
	require.ErrorIs(t, err, domain.ErrPaymentFailed)

	f.payments.decline = false
	_, err = f.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)
}

func TestPlaceOrder_ConcurrentCheckoutsDoNotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category("Limited")
	truffle := f.product(cat.ID, "Truffle", "30.00", 1)

	const buyers = 10
	users := make([]*domain.User, buyers)
	for i := range users {
		users[i] = f.user("buyer" + string(rune('a'+i)))
		require.NoError(t, f.cart.Add(ctx, users[i].ID, truffle.ID, 1))
	}

	var success, soldOut atomic.Int32
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(ctx, checkout(userID))
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, int32(buyers-1), soldOut.Load())

	p, err := f.store.GetProduct(ctx, truffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)

	// every losing checkout was charged and then refunded
	f.payments.mu.Lock()
	defer f.payments.mu.Unlock()
	assert.Equal(t, len(f.payments.charges)-1, len(f.payments.refunds))
}

func TestPlaceOrder_LowStockAlertAndNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("kate")
	cat := f.category("Dairy")
	butter := f.product(cat.ID, "Butter", "4.00", 12)
	require.NoError(t, f.cart.Add(ctx, u.ID, butter.ID, 3))
	f.notifier.err = errors.New("smtp down")

	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	alerts := f.notifier.byTemplate(port.TemplateLowStockAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, adminEmail, alerts[0].To)
	assert.Equal(t, 9, alerts[0].Data["current_stock"])
}

func TestQuote_IncludesCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("liam")
	cat := f.category("Drinks")
	juice := f.product(cat.ID, "Juice", "6.00", 30)
	require.NoError(t, f.cart.Add(ctx, u.ID, juice.ID, 2))
	f.coupon(CouponInput{Code: "FIVE", DiscountType: domain.DiscountFixed, DiscountValue: money("5")})

	q, err := f.orders.Quote(ctx, u.ID, "five")
	require.NoError(t, err)
	requireMoney(t, "12", q.Breakdown.Subtotal)
	requireMoney(t, "5", q.Breakdown.Discount)
	requireMoney(t, "0.96", q.Breakdown.Tax)
	requireMoney(t, "13.95", q.Breakdown.Total)
}

func TestGetOrder_HidesOtherUsersOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user("mona")
	other := f.user("ned")
	cat := f.category("Produce")
	plum := f.product(cat.ID, "Plum", "1.00", 30)
	require.NoError(t, f.cart.Add(ctx, owner.ID, plum.ID, 1))
	order, err := f.orders.PlaceOrder(ctx, checkout(owner.ID))
	require.NoError(t, err)

	_, err = f.orders.GetOrder(ctx, other.ID, false, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.orders.GetOrder(ctx, other.ID, true, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("olga")
	cat := f.category("Produce")
	corn := f.product(cat.ID, "Corn", "1.00", 30)
	require.NoError(t, f.cart.Add(ctx, u.ID, corn.ID, 4))
	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	updated, err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	updated, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)

	p, _ := f.store.GetProduct(ctx, corn.ID)
	assert.Equal(t, 30, p.StockQuantity)
	assert.Len(t, f.notifier.byTemplate(port.TemplateOrderStatusUpdate), 2)

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatus_CancelRefundsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("pete")
	cat := f.category("Bakery")
	rye := f.product(cat.ID, "Rye", "6.50", 20)
	require.NoError(t, f.cart.Add(ctx, u.ID, rye.ID, 3))
	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	cancelled, err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, []string{order.PaymentToken}, f.payments.refunds)

	d, err := f.analytics.Dashboard(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalOrders)
	requireMoney(t, "0", d.TotalRevenue)
	assert.Empty(t, d.TopProducts)

	review, err := f.reviews.Add(ctx, ReviewInput{UserID: u.ID, ProductID: rye.ID, Rating: 2, Title: "Never arrived"})
	require.NoError(t, err)
	assert.False(t, review.IsVerifiedPurchase)
}

func TestUpdateStatus_RefundFailureKeepsOrderOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("quinn")
	cat := f.category("Pantry")
	oats := f.product(cat.ID, "Oats", "3.00", 10)
	require.NoError(t, f.cart.Add(ctx, u.ID, oats.ID, 2))
	order, err := f.orders.PlaceOrder(ctx, checkout(u.ID))
	require.NoError(t, err)

	f.payments.refundErr = errors.New("gateway timeout")
	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, "")
	require.ErrorIs(t, err, domain.ErrPaymentFailed)

	got, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	p, _ := f.store.GetProduct(ctx, oats.ID)
	assert.Equal(t, 8, p.StockQuantity)
}

func TestUpdateStatus_CancelCashOrderSkipsRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("rosa")
	cat := f.category("Frozen")
	peas := f.product(cat.ID, "Peas", "2.00", 10)
	require.NoError(t, f.cart.Add(ctx, u.ID, peas.ID, 1))
	in := checkout(u.ID)
	in.PaymentMethod = domain.PaymentMethodCashOnDelivery
	order, err := f.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	cancelled, err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, cancelled.PaymentStatus)
	assert.Empty(t, f.payments.refunds)
}
