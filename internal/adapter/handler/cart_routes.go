package handler

import (
	"net/http"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func (req cartItemRequest) quantity(def int) int {
	if req.Quantity == nil {
		return def
	}
	return *req.Quantity
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Cart.View(r.Context(), sessionFromContext(r.Context()).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(view.Lines, view.Breakdown))
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	userID := sessionFromContext(r.Context()).UserID
	if err := h.svc.Cart.Add(r.Context(), userID, req.ProductID, req.quantity(1)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Item added to cart")
}

func (h *HTTPHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.writeDomainError(w, r, domain.NewValidationError("quantity", "is required"))
		return
	}
	userID := sessionFromContext(r.Context()).UserID
	if err := h.svc.Cart.Update(r.Context(), userID, req.ProductID, *req.Quantity); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Cart updated")
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	userID := sessionFromContext(r.Context()).UserID
	if err := h.svc.Cart.Remove(r.Context(), userID, req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Item removed from cart")
}

func (h *HTTPHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Cart.Wishlist(r.Context(), sessionFromContext(r.Context()).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWishlist(entries))
}

func (h *HTTPHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.svc.Cart.AddToWishlist(r.Context(), sessionFromContext(r.Context()).UserID, req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Item added to wishlist")
}

func (h *HTTPHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.svc.Cart.RemoveFromWishlist(r.Context(), sessionFromContext(r.Context()).UserID, req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Item removed from wishlist")
}
