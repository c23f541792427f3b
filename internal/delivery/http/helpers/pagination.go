package helpers

import (
	"net/http"
	"strconv"

	"occasio/internal/domain"
)

// ParsePagination reads ?page= and ?page_size=. Values that are missing or
// not integers fall back to the defaults; out-of-range values are clamped.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	return domain.NewPaginationParams(queryInt(q.Get("page")), queryInt(q.Get("page_size")))
}

func queryInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// PaginationMeta describes the returned page.
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginated is the data payload of a list response.
type Paginated[T any] struct {
	Items      []T            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewPaginated wraps one page of items. A nil page encodes as [].
func NewPaginated[T any](items []T, params domain.PaginationParams, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items: items,
		Pagination: PaginationMeta{
			Page:       params.Page,
			PageSize:   params.PageSize,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	}
}
