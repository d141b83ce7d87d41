package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dairy := f.category("Dairy")
	_, err := f.catalog.CreateProduct(ctx, ProductInput{Name: "Greek Yogurt", Description: "Plain whole milk", Brand: "Fage", Price: money("5.49"), CategoryID: dairy.ID, StockQuantity: 10})
	require.NoError(t, err)
	_, err = f.catalog.CreateProduct(ctx, ProductInput{Name: "Oat Milk", Description: "Barista edition", Price: money("3.99"), CategoryID: dairy.ID, StockQuantity: 10})
	require.NoError(t, err)
	f.product(dairy.ID, "Cheddar", "6.49", 10)

	_, _, err = f.search.Search(ctx, SearchQuery{Query: "   "})
	assert.EqualError(t, err, "Search query is required")

	products, pg, err := f.search.Search(ctx, SearchQuery{Query: "milk", SortBy: "price_low", UserID: 1})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Oat Milk", products[0].Name)
	assert.Equal(t, 2, pg.Total)

	products, _, err = f.search.Search(ctx, SearchQuery{Query: "MILK fage"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Greek Yogurt", products[0].Name)

	d, err := f.analytics.Dashboard(ctx, 30)
	require.NoError(t, err)
	require.Len(t, d.TopSearches, 1, "anonymous searches are not logged")
	assert.Equal(t, domain.SearchCount{Query: "milk", Count: 1}, d.TopSearches[0])
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bakery := f.category("Bakery")
	f.category("Baking Supplies")
	f.product(bakery.ID, "Bagel", "1.20", 10)
	f.product(bakery.ID, "Baguette", "2.50", 10)

	out, err := f.search.Suggestions(ctx, "b", 10)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = f.search.Suggestions(ctx, "ba", 10)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, domain.Suggestion{Type: domain.SuggestionProduct, Text: "Bagel", ID: out[0].ID, Category: "Bakery"}, out[0])
	assert.Equal(t, domain.SuggestionCategory, out[2].Type)
	assert.Equal(t, "Bakery", out[2].Text)

	out, err = f.search.Suggestions(ctx, "ba", 3)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
