package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const (
	topProductsLimit = 10
	topSearchesLimit = 10
	lowStockSample   = 5
)

func (s *Store) Dashboard(_ context.Context, since time.Time) (*domain.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &domain.Dashboard{
		TotalRevenue: decimal.Zero,
	}

	sold := make(map[int64]int)
	revenueByCategory := make(map[int64]decimal.Decimal)
	buyers := make(map[int64]struct{})
	for _, o := range s.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		d.TotalOrders++
		buyers[o.UserID] = struct{}{}
		if o.PaymentStatus != domain.PaymentStatusPaid {
			continue
		}
		d.TotalRevenue = d.TotalRevenue.Add(o.TotalAmount)
		for _, item := range o.Items {
			sold[item.ProductID] += item.Quantity
			if p, ok := s.products[item.ProductID]; ok {
				revenueByCategory[p.CategoryID] = revenueByCategory[p.CategoryID].Add(item.Total)
			}
		}
	}
	d.ActiveUsers = len(buyers)
	if d.TotalOrders > 0 {
		d.AverageOrderValue = d.TotalRevenue.Div(decimal.NewFromInt(int64(d.TotalOrders))).Round(2)
	}

	for id, qty := range sold {
		ps := domain.ProductSales{ProductID: id, QuantitySold: qty}
		if p, ok := s.products[id]; ok {
			ps.Name = p.Name
		}
		d.TopProducts = append(d.TopProducts, ps)
	}
	sort.Slice(d.TopProducts, func(i, j int) bool {
		if d.TopProducts[i].QuantitySold != d.TopProducts[j].QuantitySold {
			return d.TopProducts[i].QuantitySold > d.TopProducts[j].QuantitySold
		}
		return d.TopProducts[i].ProductID < d.TopProducts[j].ProductID
	})
	if len(d.TopProducts) > topProductsLimit {
		d.TopProducts = d.TopProducts[:topProductsLimit]
	}

	for id, rev := range revenueByCategory {
		cs := domain.CategorySales{CategoryID: id, Revenue: rev}
		if c, ok := s.categories[id]; ok {
			cs.Name = c.Name
		}
		d.CategorySales = append(d.CategorySales, cs)
	}
	sort.Slice(d.CategorySales, func(i, j int) bool {
		return d.CategorySales[i].Revenue.GreaterThan(d.CategorySales[j].Revenue)
	})

	for _, u := range s.users {
		if !u.CreatedAt.Before(since) {
			d.NewUsers++
		}
	}

	queries := make(map[string]int)
	for _, l := range s.searches {
		if !l.CreatedAt.Before(since) {
			queries[l.Query]++
		}
	}
	for q, n := range queries {
		d.TopSearches = append(d.TopSearches, domain.SearchCount{Query: q, Count: n})
	}
	sort.Slice(d.TopSearches, func(i, j int) bool {
		if d.TopSearches[i].Count != d.TopSearches[j].Count {
			return d.TopSearches[i].Count > d.TopSearches[j].Count
		}
		return d.TopSearches[i].Query < d.TopSearches[j].Query
	})
	if len(d.TopSearches) > topSearchesLimit {
		d.TopSearches = d.TopSearches[:topSearchesLimit]
	}

	low := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.IsAvailable && p.IsLowStock() {
			low = append(low, *p)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].StockQuantity < low[j].StockQuantity })
	d.LowStockCount = len(low)
	if len(low) > lowStockSample {
		low = low[:lowStockSample]
	}
	d.LowStockProducts = low
	return d, nil
}
