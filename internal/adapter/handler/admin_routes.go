package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/service"
)

const defaultInventoryLogLimit = 50

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	c, err := h.svc.Catalog.CreateCategory(r.Context(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategory(*c))
}

type productRequest struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	CategoryID    int64               `json:"category_id"`
	ImageURL      string              `json:"image_url"`
	StockQuantity int                 `json:"stock_quantity"`
	MinStockLevel *int                `json:"min_stock_level"`
	IsAvailable   *bool               `json:"is_available"`
	IsFeatured    bool                `json:"is_featured"`
	Weight        *float64            `json:"weight"`
	Unit          string              `json:"unit"`
	Barcode       string              `json:"barcode"`
	Brand         string              `json:"brand"`
}

func (req productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		CategoryID:    req.CategoryID,
		ImageURL:      req.ImageURL,
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		IsAvailable:   req.IsAvailable,
		IsFeatured:    req.IsFeatured,
		Weight:        req.Weight,
		Unit:          req.Unit,
		Barcode:       req.Barcode,
		Brand:         req.Brand,
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	p, err := h.svc.Catalog.CreateProduct(r.Context(), req.input())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProduct(*p))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	p, err := h.svc.Catalog.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(*p))
}

type stockRequest struct {
	QuantityChange int    `json:"quantity_change"`
	ChangeType     string `json:"change_type"`
	Reason         string `json:"reason"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	log, err := h.svc.Inventory.AdjustStock(r.Context(), service.StockAdjustment{
		ProductID:  id,
		Delta:      req.QuantityChange,
		ChangeType: domain.ChangeType(req.ChangeType),
		Reason:     req.Reason,
		AdminID:    sessionFromContext(r.Context()).UserID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryLog(*log))
}

func (h *HTTPHandler) InventoryLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	logs, err := h.svc.Inventory.Logs(r.Context(), id, queryInt(r, "limit", defaultInventoryLogLimit))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]inventoryLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toInventoryLog(l))
	}
	writeJSON(w, http.StatusOK, out)
}

type couponRequest struct {
	Code              string              `json:"code"`
	Description       string              `json:"description"`
	DiscountType      string              `json:"discount_type"`
	DiscountValue     decimal.Decimal     `json:"discount_value"`
	MinOrderAmount    decimal.Decimal     `json:"min_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	UsageLimit        *int                `json:"usage_limit"`
	ValidFrom         *time.Time          `json:"valid_from"`
	ValidUntil        *time.Time          `json:"valid_until"`
}

func (h *HTTPHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	c, err := h.svc.Coupons.Create(r.Context(), service.CouponInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      domain.DiscountType(req.DiscountType),
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoupon(c))
}

func (h *HTTPHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.svc.Coupons.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]couponDTO, 0, len(coupons))
	for i := range coupons {
		out = append(out, toCoupon(&coupons[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	order, err := h.svc.Orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status), req.TrackingNumber)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(order))
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Analytics.Dashboard(r.Context(), queryInt(r, "days", 30))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboard(d))
}
