package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/service"
)

type productListResponse struct {
	Products   []productDTO      `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
}

func queryPrice(r *http.Request, key string) (decimal.NullDecimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, domain.NewValidationError(key, "must be a number")
	}
	return decimal.NewNullDecimal(d), nil
}

func priceRange(r *http.Request) (lo, hi decimal.NullDecimal, err error) {
	if lo, err = queryPrice(r, "min_price"); err != nil {
		return
	}
	hi, err = queryPrice(r, "max_price")
	return
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	lo, hi, err := priceRange(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	q := r.URL.Query()
	products, page, err := h.svc.Catalog.ListProducts(r.Context(), service.ProductQuery{
		CategoryID:   queryInt64(r, "category_id"),
		Search:       q.Get("search"),
		MinPrice:     lo,
		MaxPrice:     hi,
		InStockOnly:  queryBool(r, "in_stock"),
		FeaturedOnly: queryBool(r, "featured"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
		Page:         queryInt(r, "page", 1),
		PerPage:      queryInt(r, "per_page", 0),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productListResponse{Products: toProducts(products), Pagination: page})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	detail, err := h.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productDetailDTO{
		productDTO: toProduct(detail.Product),
		Reviews:    toReviews(detail.Reviews),
	})
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategory(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	reviews, page, err := h.svc.Reviews.List(r.Context(), id,
		r.URL.Query().Get("sort"), queryInt(r, "page", 1), queryInt(r, "per_page", 0))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reviews":    toReviews(reviews),
		"pagination": page,
	})
}

func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	lo, hi, err := priceRange(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var userID int64
	if sess := sessionFromContext(r.Context()); sess != nil {
		userID = sess.UserID
	}
	q := r.URL.Query()
	products, page, err := h.svc.Search.Search(r.Context(), service.SearchQuery{
		Query:       q.Get("q"),
		CategoryID:  queryInt64(r, "category_id"),
		MinPrice:    lo,
		MaxPrice:    hi,
		InStockOnly: queryBool(r, "in_stock"),
		SortBy:      q.Get("sort"),
		Page:        queryInt(r, "page", 1),
		PerPage:     queryInt(r, "per_page", 0),
		UserID:      userID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      strings.TrimSpace(q.Get("q")),
		"products":   toProducts(products),
		"pagination": page,
	})
}

func (h *HTTPHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.svc.Search.Suggestions(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 10))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}
