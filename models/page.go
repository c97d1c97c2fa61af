package models

// Page is one window of a listing plus the counts needed to walk the rest.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
}

func NewPage[T any](items []T, total int64, skip, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	page := 1
	if limit > 0 {
		page = skip/limit + 1
	}
	return Page[T]{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: limit,
		Pages:   pages,
	}
}
