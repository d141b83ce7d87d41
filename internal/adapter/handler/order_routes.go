package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/service"
)

const deliveryDateLayout = "2006-01-02"

type placeOrderRequest struct {
	CouponCode          string `json:"coupon_code"`
	PaymentMethod       string `json:"payment_method"`
	DeliveryAddress     string `json:"delivery_address"`
	DeliveryDate        string `json:"delivery_date"`
	DeliveryTimeSlot    string `json:"delivery_time_slot"`
	SpecialInstructions string `json:"special_instructions"`
	IdempotencyKey      string `json:"idempotency_key"`
}

func parseDeliveryDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(deliveryDateLayout, s)
	if err != nil {
		return nil, domain.NewValidationError("delivery_date", "must be YYYY-MM-DD")
	}
	return &d, nil
}

func (h *HTTPHandler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponCode string `json:"coupon_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	q, err := h.svc.Orders.Quote(r.Context(), sessionFromContext(r.Context()).UserID, req.CouponCode)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuote(q))
}

// PlaceOrder reads the idempotency key from the Idempotency-Key header,
// falling back to the request body.
func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	date, err := parseDeliveryDate(req.DeliveryDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	order, err := h.svc.Orders.PlaceOrder(r.Context(), service.PlaceOrderInput{
		UserID:              sessionFromContext(r.Context()).UserID,
		CouponCode:          req.CouponCode,
		PaymentMethod:       domain.PaymentMethod(req.PaymentMethod),
		DeliveryAddress:     req.DeliveryAddress,
		DeliveryDate:        date,
		DeliveryTimeSlot:    req.DeliveryTimeSlot,
		SpecialInstructions: req.SpecialInstructions,
		IdempotencyKey:      key,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"order":        toOrder(order),
	})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, page, err := h.svc.Orders.ListOrders(r.Context(), sessionFromContext(r.Context()).UserID,
		queryInt(r, "page", 1), queryInt(r, "per_page", 0))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]orderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(&orders[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     out,
		"pagination": page,
	})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	sess := sessionFromContext(r.Context())
	order, err := h.svc.Orders.GetOrder(r.Context(), sess.UserID, sess.IsAdmin, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(order))
}

type reviewRequest struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

func (h *HTTPHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	review, err := h.svc.Reviews.Add(r.Context(), service.ReviewInput{
		UserID:    sessionFromContext(r.Context()).UserID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"message":   "Review added successfully",
		"review_id": review.ID,
	})
}

func (h *HTTPHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string           `json:"coupon_code"`
		CartTotal *decimal.Decimal `json:"cart_total"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	res, err := h.svc.Coupons.Validate(r.Context(), sessionFromContext(r.Context()).UserID, req.Code, req.CartTotal)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponValidation(res))
}
