package domain

import (
	"math"
	"strings"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	// keeps Page*Size inside an int32 OFFSET
	MaxPage = math.MaxInt32 / MaxPageSize
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// PageRequest is a zero-based page index with a sort key. Use NewPageRequest
// to get clamped values.
type PageRequest struct {
	Page    int
	Size    int
	SortBy  string
	SortDir SortDirection
}

func NewPageRequest(page, size int, sortBy, sortDir string) PageRequest {
	if page < 0 {
		page = 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	dir := SortAsc
	if strings.EqualFold(sortDir, string(SortDesc)) {
		dir = SortDesc
	}
	return PageRequest{Page: page, Size: size, SortBy: sortBy, SortDir: dir}
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: total,
		TotalPages: pages,
	}
}

func (p Page[T]) HasNext() bool {
	return p.Page+1 < p.TotalPages
}
