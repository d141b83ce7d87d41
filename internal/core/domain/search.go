package domain

import "time"

type SearchLog struct {
	ID           int64
	UserID       int64
	Query        string
	ResultsCount int
	CreatedAt    time.Time
}

type SuggestionType string

const (
	SuggestionProduct  SuggestionType = "product"
	SuggestionCategory SuggestionType = "category"
)

type Suggestion struct {
	Type     SuggestionType `json:"type"`
	Text     string         `json:"text"`
	ID       int64          `json:"id"`
	Category string         `json:"category,omitempty"`
}
