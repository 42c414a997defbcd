package query

import (
	"encoding/json"
	"strings"
)

// Direction is the sort direction of a field: 1 ascending, -1 descending.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// SortField is one entry of an ordered sort.
type SortField struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Sort is an ordered list of sort fields. Earlier entries take precedence.
type Sort []SortField

// String renders the sort back into its "field,-field2" form.
func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		if f.Direction == Desc {
			parts[i] = "-" + f.Field
		} else {
			parts[i] = f.Field
		}
	}
	return strings.Join(parts, ",")
}

// ParseSort parses "field,-field2". Spaces are ignored and a leading "+" is
// accepted. When allowed is non-empty, fields outside it are dropped without
// error. A repeated field keeps its first position and its last direction.
func ParseSort(raw string, allowed []string) Sort {
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return nil
	}

	var allow map[string]struct{}
	if len(allowed) > 0 {
		allow = make(map[string]struct{}, len(allowed))
		for _, f := range allowed {
			allow[f] = struct{}{}
		}
	}

	var out Sort
	index := map[string]int{}
	for _, token := range strings.Split(raw, ",") {
		dir := Asc
		switch {
		case strings.HasPrefix(token, "-"):
			dir = Desc
			token = token[1:]
		case strings.HasPrefix(token, "+"):
			token = token[1:]
		}
		if token == "" {
			continue
		}
		if allow != nil {
			if _, ok := allow[token]; !ok {
				continue
			}
		}
		if i, seen := index[token]; seen {
			out[i].Direction = dir
			continue
		}
		index[token] = len(out)
		out = append(out, SortField{Field: token, Direction: dir})
	}
	return out
}

// Skip returns the number of records to skip for a 1-based page.
func Skip(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit < 0 {
		limit = 0
	}
	return (page - 1) * limit
}

// Pagination holds the page size policy.
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPagination mirrors the stock page size of 100.
func DefaultPagination() Pagination {
	return Pagination{DefaultLimit: 100, MaxLimit: 1000}
}

// Normalize applies defaults and clamps limit to MaxLimit.
func (p Pagination) Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = p.DefaultLimit
	}
	if limit < 1 {
		limit = DefaultPagination().DefaultLimit
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	return page, limit
}

// Specification is the per request query description consumed by list
// operations. It is a value and is never mutated after parsing.
type Specification struct {
	Page         int            `json:"page,omitempty"`
	Limit        int            `json:"limit,omitempty"`
	Sort         Sort           `json:"sort,omitempty"`
	Q            string         `json:"q,omitempty"`
	SearchFields []string       `json:"searchFields,omitempty"`
	Filter       map[string]any `json:"filter,omitempty"`
}

// Skip returns the offset for the specification's page and limit.
func (s Specification) Skip() int {
	return Skip(s.Page, s.Limit)
}

// WithoutPagination returns a copy with page and limit cleared.
func (s Specification) WithoutPagination() Specification {
	s.Page = 0
	s.Limit = 0
	return s
}

// Params flattens the specification into a map suitable for cache keys.
// Sort is rendered as a string so its order survives key sorting.
func (s Specification) Params() map[string]any {
	out := map[string]any{}
	if s.Page > 0 {
		out["page"] = s.Page
	}
	if s.Limit > 0 {
		out["limit"] = s.Limit
	}
	if len(s.Sort) > 0 {
		out["sort"] = s.Sort.String()
	}
	if s.Q != "" {
		out["q"] = s.Q
	}
	if len(s.SearchFields) > 0 {
		out["searchFields"] = s.SearchFields
	}
	if len(s.Filter) > 0 {
		filter := make(map[string]any, len(s.Filter))
		for k, v := range s.Filter {
			if _, skip := v.(undefined); skip {
				continue
			}
			filter[k] = v
		}
		out["filter"] = filter
	}
	return out
}

// MarshalJSON keeps Undefined out of serialized filters.
func (u undefined) MarshalJSON() ([]byte, error) {
	return json.Marshal(nil)
}
