package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/port"
)

type CartService struct {
	carts   port.CartRepository
	catalog port.CatalogRepository
	engine  pricing.Engine
	deps    Deps
}

func NewCartService(carts port.CartRepository, catalog port.CatalogRepository, engine pricing.Engine, deps Deps) *CartService {
	return &CartService{carts: carts, catalog: catalog, engine: engine, deps: deps.withDefaults()}
}

type CartView struct {
	Lines     []domain.CartLine
	Breakdown pricing.Breakdown
}

// View prices the cart without any coupon.
func (s *CartService) View(ctx context.Context, userID int64) (*CartView, error) {
	lines, err := s.carts.ListCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return &CartView{
		Lines:     lines,
		Breakdown: s.engine.Quote(pricing.LinesFromCart(lines), decimal.Zero),
	}, nil
}

// Subtotal is the current cart's undiscounted item total.
func (s *CartService) Subtotal(ctx context.Context, userID int64) (decimal.Decimal, error) {
	lines, err := s.carts.ListCart(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list cart: %w", err)
	}
	return pricing.Subtotal(pricing.LinesFromCart(lines)), nil
}

func (s *CartService) availableProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrProductUnavailable
		}
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if !p.IsAvailable {
		return nil, domain.ErrProductUnavailable
	}
	return p, nil
}

// Add puts quantity more of a product in the cart. The resulting line must
// still fit in stock.
func (s *CartService) Add(ctx context.Context, userID, productID int64, quantity int) (err error) {
	defer s.deps.track("cart.add")(&err)

	if quantity < 1 {
		return domain.NewValidationError("quantity", "must be at least 1")
	}
	p, err := s.availableProduct(ctx, productID)
	if err != nil {
		return err
	}

	next := quantity
	existing, err := s.carts.GetCartItem(ctx, userID, productID)
	switch {
	case err == nil:
		next += existing.Quantity
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("get cart item: %w", err)
	}
	if next > p.StockQuantity {
		return domain.ErrInsufficientStock
	}

	item := &domain.CartItem{UserID: userID, ProductID: productID, Quantity: next, AddedAt: s.deps.now()}
	if err := s.carts.SaveCartItem(ctx, item); err != nil {
		return fmt.Errorf("save cart item: %w", err)
	}
	return nil
}

// Update sets the line quantity; zero removes the line.
func (s *CartService) Update(ctx context.Context, userID, productID int64, quantity int) (err error) {
	defer s.deps.track("cart.update")(&err)

	if quantity < 0 {
		return domain.NewValidationError("quantity", "must not be negative")
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, productID)
	}
	if _, err := s.carts.GetCartItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("get cart item: %w", err)
	}
	p, err := s.availableProduct(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.StockQuantity {
		return domain.ErrInsufficientStock
	}
	if err := s.carts.SaveCartItem(ctx, &domain.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}); err != nil {
		return fmt.Errorf("save cart item: %w", err)
	}
	return nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID int64) error {
	if err := s.carts.DeleteCartItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (s *CartService) Wishlist(ctx context.Context, userID int64) ([]domain.WishlistEntry, error) {
	entries, err := s.carts.ListWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return entries, nil
}

func (s *CartService) AddToWishlist(ctx context.Context, userID, productID int64) error {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return fmt.Errorf("get product %d: %w", productID, err)
	}
	err := s.carts.AddWishlistItem(ctx, &domain.WishlistItem{UserID: userID, ProductID: productID, AddedAt: s.deps.now()})
	if errors.Is(err, domain.ErrDuplicate) {
		return domain.Invalid("Item already in wishlist")
	}
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	if err := s.carts.DeleteWishlistItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}
