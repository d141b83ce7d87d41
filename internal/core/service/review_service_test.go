package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func TestReviewAdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.user("alice")
	browser := f.user("bob")
	cat := f.category("Produce")
	mango := f.product(cat.ID, "Mango", "2.00", 30)

	require.NoError(t, f.cart.Add(ctx, buyer.ID, mango.ID, 1))
	_, err := f.orders.PlaceOrder(ctx, checkout(buyer.ID))
	require.NoError(t, err)

	r, err := f.reviews.Add(ctx, ReviewInput{UserID: buyer.ID, ProductID: mango.ID, Rating: 5, Title: " Sweet "})
	require.NoError(t, err)
	assert.True(t, r.IsVerifiedPurchase)
	assert.Equal(t, "Sweet", r.Title)

	r, err = f.reviews.Add(ctx, ReviewInput{UserID: browser.ID, ProductID: mango.ID, Rating: 2})
	require.NoError(t, err)
	assert.False(t, r.IsVerifiedPurchase)

	_, err = f.reviews.Add(ctx, ReviewInput{UserID: buyer.ID, ProductID: mango.ID, Rating: 4})
	assert.EqualError(t, err, "You have already reviewed this product")

	_, err = f.reviews.Add(ctx, ReviewInput{UserID: buyer.ID, ProductID: mango.ID, Rating: 6})
	assert.EqualError(t, err, "Rating must be between 1 and 5")

	_, err = f.reviews.Add(ctx, ReviewInput{UserID: buyer.ID, ProductID: 31337, Rating: 4})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReviewList_SortAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category("Produce")
	lemon := f.product(cat.ID, "Lemon", "0.60", 30)

	for i, rating := range []int{3, 5, 1} {
		u := f.user([]string{"ann", "ben", "cat"}[i])
		_, err := f.reviews.Add(ctx, ReviewInput{UserID: u.ID, ProductID: lemon.ID, Rating: rating})
		require.NoError(t, err)
		f.now = f.now.Add(time.Minute)
	}

	ratings := func(rs []domain.Review) []int {
		out := make([]int, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Rating)
		}
		return out
	}

	rs, pg, err := f.reviews.List(ctx, lemon.ID, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 3}, ratings(rs))
	assert.Equal(t, 10, pg.PerPage)
	assert.Equal(t, "Test U.", domain.ShortName(rs[0].FirstName, rs[0].LastName))

	rs, _, err = f.reviews.List(ctx, lemon.ID, "oldest", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 1}, ratings(rs))

	rs, _, err = f.reviews.List(ctx, lemon.ID, "rating_high", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 1}, ratings(rs))

	rs, pg, err = f.reviews.List(ctx, lemon.ID, "rating_low", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ratings(rs))
	assert.Equal(t, 3, pg.Total)
}
