// Package pagination provides page requests, page envelopes and the gorm
// scope that slices list queries.
package pagination

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in page 1 and DefaultPageSize when unset, and caps the page
// size for callers that bypass binding.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
// Data is never nil so that an empty page encodes as [].
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Map converts the items of a page, keeping its metadata.
func Map[T, U any](p *PageResponse[T], fn func(*T) U) PageResponse[U] {
	out := make([]U, 0, len(p.Data))
	for i := range p.Data {
		out = append(out, fn(&p.Data[i]))
	}
	return NewPageResponse(out, p.Page, p.PageSize, p.TotalItems)
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Find counts the rows matched by q, then loads the requested page of them
// in the given order. q must already carry its Model and filters.
func Find[T any](q *gorm.DB, req PageRequest, order string, preload ...string) (*PageResponse[T], error) {
	req.Defaults()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page := q.Session(&gorm.Session{}).Scopes(Paginate(req))
	for _, assoc := range preload {
		page = page.Preload(assoc)
	}
	if order != "" {
		page = page.Order(order)
	}

	var items []T
	if err := page.Find(&items).Error; err != nil {
		return nil, err
	}

	result := NewPageResponse(items, req.Page, req.PageSize, total)
	return &result, nil
}
