package service

// Page is one page of a paginated listing. Total and Data come from two
// separate queries and can disagree under concurrent writes.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"currentPage"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPage"`
}

// TotalPages returns ceil(total/limit), or 0 when limit is not positive.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// NewPage builds a page and computes the page count.
func NewPage[T any](data []T, total, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
	}
}
