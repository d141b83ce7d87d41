package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID                 int64
	UserID             int64
	ProductID          int64
	Rating             int
	Title              string
	Comment            string
	IsVerifiedPurchase bool
	CreatedAt          time.Time

	// Reviewer names, filled by read queries.
	FirstName string
	LastName  string
}

type ReviewSort string

const (
	ReviewSortNewest     ReviewSort = "newest"
	ReviewSortOldest     ReviewSort = "oldest"
	ReviewSortRatingHigh ReviewSort = "rating_high"
	ReviewSortRatingLow  ReviewSort = "rating_low"
)
