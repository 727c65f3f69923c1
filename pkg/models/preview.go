package models

// DefaultPageSize is the fixed number of records per preview page.
const DefaultPageSize = 10

// Record is one materialized row keyed by field name. Values may be nil.
type Record map[string]any

// PreviewPage is one bounded slice of records for a source.
type PreviewPage struct {
	PageNumber   int      `json:"page"`
	PageSize     int      `json:"page_size"`
	Rows         []Record `json:"data"`
	TotalRecords int      `json:"total_records"`
}

// TotalPages returns ceil(TotalRecords / PageSize).
func (p *PreviewPage) TotalPages() int {
	return TotalPages(p.TotalRecords, p.PageSize)
}

// TotalPages returns ceil(totalRecords / pageSize), or 0 for an empty set.
func TotalPages(totalRecords, pageSize int) int {
	if totalRecords <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalRecords + pageSize - 1) / pageSize
}

// ClampPage bounds page to [1, max(totalPages, 1)].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
