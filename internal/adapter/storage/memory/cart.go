package memory

import (
	"context"
	"sort"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) ListCart(_ context.Context, userID int64) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, 0)
	for k, item := range s.cart {
		if k.userID != userID {
			continue
		}
		p, ok := s.products[k.productID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{Item: *item, Product: s.decorate(p)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Item.ID < lines[j].Item.ID })
	return lines, nil
}

func (s *Store) GetCartItem(_ context.Context, userID, productID int64) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.cart[pairKey{userID, productID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *item
	return &out, nil
}

func (s *Store) SaveCartItem(_ context.Context, item *domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{item.UserID, item.ProductID}
	if existing, ok := s.cart[key]; ok {
		existing.Quantity = item.Quantity
		*item = *existing
		return nil
	}
	item.ID = s.nextID()
	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}
	stored := *item
	s.cart[key] = &stored
	return nil
}

func (s *Store) DeleteCartItem(_ context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, productID}
	if _, ok := s.cart[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.cart, key)
	return nil
}

func (s *Store) ListWishlist(_ context.Context, userID int64) ([]domain.WishlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.WishlistEntry, 0)
	for k, item := range s.wishlist {
		if k.userID != userID {
			continue
		}
		p, ok := s.products[k.productID]
		if !ok {
			continue
		}
		out = append(out, domain.WishlistEntry{Item: *item, Product: s.decorate(p)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID > out[j].Item.ID })
	return out, nil
}

func (s *Store) AddWishlistItem(_ context.Context, item *domain.WishlistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{item.UserID, item.ProductID}
	if _, ok := s.wishlist[key]; ok {
		return domain.ErrDuplicate
	}
	item.ID = s.nextID()
	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}
	stored := *item
	s.wishlist[key] = &stored
	return nil
}

func (s *Store) DeleteWishlistItem(_ context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, productID}
	if _, ok := s.wishlist[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.wishlist, key)
	return nil
}
