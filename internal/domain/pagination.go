package domain

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams selects one page of a list ordered by the repository.
// Page is 1-based.
type PaginationParams struct {
	Page     int
	PageSize int
}

// NewPaginationParams clamps page and size into range: page defaults to 1,
// size to DefaultPageSize and is capped at MaxPageSize.
func NewPaginationParams(page, size int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return PaginationParams{Page: page, PageSize: min(size, MaxPageSize)}
}

// Offset is the number of rows before the page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns how many pages of this size hold total rows.
func (p PaginationParams) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}
