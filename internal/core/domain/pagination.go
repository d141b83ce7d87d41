package domain

import "math"

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	// MaxPage keeps Offset within int32 for any allowed page size.
	MaxPage = math.MaxInt32 / MaxPerPage
)

type Page struct {
	Number  int
	PerPage int
}

// NewPage clamps the requested page into 1..MaxPage; perPage outside
// 1..MaxPerPage falls back to def.
func NewPage(number, perPage, def int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPage {
		number = MaxPage
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = def
	}
	return Page{Number: number, PerPage: perPage}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

type Pagination struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Pagination{
		Page:    p.Number,
		Pages:   pages,
		PerPage: p.PerPage,
		Total:   total,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1,
	}
}
