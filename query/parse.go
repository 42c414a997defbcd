package query

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/goliatone/go-crud-service/apperror"
)

// Validation codes reported by Parse.
const (
	CodePageInvalid        = "QUERY.PAGE_INVALID"
	CodeLimitInvalid       = "QUERY.LIMIT_INVALID"
	CodeFilterInvalid      = "QUERY.FILTER_INVALID"
	CodeSearchNotAllowed   = "QUERY.SEARCH_NOT_ALLOWED"
	CodeSearchFieldInvalid = "QUERY.SEARCH_FIELD_INVALID"
)

// ParseOptions configures Parse for one resource.
type ParseOptions struct {
	Pagination Pagination
	// SortFields restricts sortable fields. Empty allows any field.
	SortFields []string
	// SearchFields is the allowlist for free text search and the default
	// set searched when the request names none. Empty disables search.
	SearchFields []string
}

type rawQuery struct {
	Page         string   `json:"page"`
	Limit        string   `json:"limit"`
	Filter       string   `json:"filter"`
	SearchFields []string `json:"searchFields"`
}

// Parse reads page, limit, sort, q, searchFields and filter from a query
// string and validates them. Failures are reported as a Validation error.
func Parse(values url.Values, opts ParseOptions) (Specification, error) {
	raw := rawQuery{
		Page:         strings.TrimSpace(values.Get("page")),
		Limit:        strings.TrimSpace(values.Get("limit")),
		Filter:       strings.TrimSpace(values.Get("filter")),
		SearchFields: searchFieldsFrom(values),
	}

	allowed := make([]any, len(opts.SearchFields))
	for i, f := range opts.SearchFields {
		allowed[i] = f
	}

	err := validation.ValidateStruct(&raw,
		validation.Field(&raw.Page, is.Int.Error(CodePageInvalid), validation.By(positive(CodePageInvalid))),
		validation.Field(&raw.Limit, is.Int.Error(CodeLimitInvalid), validation.By(positive(CodeLimitInvalid))),
		validation.Field(&raw.Filter, validation.By(jsonObject)),
		validation.Field(&raw.SearchFields,
			validation.When(len(allowed) == 0, validation.Empty.Error(CodeSearchNotAllowed)),
			validation.When(len(allowed) > 0, validation.Each(validation.In(allowed...).Error(CodeSearchFieldInvalid))),
		),
	)
	if err != nil {
		if verr, ok := apperror.FromValidation(err); ok {
			return Specification{}, verr
		}
		return Specification{}, err
	}

	spec := Specification{
		Sort:         ParseSort(values.Get("sort"), opts.SortFields),
		Q:            strings.TrimSpace(values.Get("q")),
		SearchFields: raw.SearchFields,
	}
	if len(spec.SearchFields) == 0 && len(opts.SearchFields) > 0 {
		spec.SearchFields = append([]string(nil), opts.SearchFields...)
	}
	spec.Page, _ = strconv.Atoi(raw.Page)
	spec.Limit, _ = strconv.Atoi(raw.Limit)
	spec.Page, spec.Limit = opts.Pagination.Normalize(spec.Page, spec.Limit)

	if raw.Filter != "" {
		if err := json.Unmarshal([]byte(raw.Filter), &spec.Filter); err != nil {
			return Specification{}, apperror.Validation([]apperror.Violation{{
				Field:       "filter",
				Constraints: map[string]string{"json": CodeFilterInvalid},
			}})
		}
	}

	return spec, nil
}

func searchFieldsFrom(values url.Values) []string {
	raw := values["searchFields[]"]
	if len(raw) == 0 {
		raw = values["searchFields"]
	}

	var out []string
	for _, v := range raw {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

func positive(code string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return validation.NewError("positive", code)
		}
		return nil
	}
}

func jsonObject(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return validation.NewError("json_object", CodeFilterInvalid)
	}
	return nil
}
