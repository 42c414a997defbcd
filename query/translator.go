package query

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

type undefined struct{}

// Undefined marks a filter key as explicitly unconstrained. Keys holding it
// are dropped by the translator.
var Undefined = undefined{}

// DefaultPrimaryKey is the logical name of the primary identifier field.
const DefaultPrimaryKey = "id"

type suffixRule func(value any) ([]Comparison, bool)

// Translator turns flat query string shaped filters into a Filter.
type Translator struct {
	// PrimaryKey is the field that "id" and "ids" resolve to.
	PrimaryKey string
}

// NewTranslator returns a translator targeting the default primary key.
func NewTranslator() *Translator {
	return &Translator{PrimaryKey: DefaultPrimaryKey}
}

var suffixRules = map[string]suffixRule{
	"IN":         single(OpIn),
	"CONTAINANY": single(OpIn),
	"INCLUDE":    single(OpEq),
	"EXCLUDE":    single(OpAll),
	"CONTAINALL": single(OpAll),
	"GTE":        single(OpGte),
	"GT":         single(OpGt),
	"LTE":        single(OpLte),
	"LT":         single(OpLt),
	"NE":         single(OpNe),
	"RANGE":      interval(OpGte, OpLte),
	"BOUND":      interval(OpGt, OpLt),
	"ISNULL":     constant(OpExists, false),
	"EXIST":      constant(OpExists, true),
	"CONTAIN":    dropped,
	"STARTWITH":  dropped,
	"ENDWITH":    dropped,
}

func single(op Operator) suffixRule {
	return func(v any) ([]Comparison, bool) {
		return []Comparison{{Op: op, Value: v}}, true
	}
}

func constant(op Operator, c any) suffixRule {
	return func(any) ([]Comparison, bool) {
		return []Comparison{{Op: op, Value: c}}, true
	}
}

// interval expects a two element slice. Anything else yields nil bounds.
func interval(lower, upper Operator) suffixRule {
	return func(v any) ([]Comparison, bool) {
		var lo, hi any
		if items, ok := SliceOf(v); ok && len(items) == 2 {
			lo, hi = items[0], items[1]
		}
		return []Comparison{{Op: lower, Value: lo}, {Op: upper, Value: hi}}, true
	}
}

// Pattern suffixes are recognized but produce no predicate.
func dropped(any) ([]Comparison, bool) {
	return nil, false
}

// Translate converts raw into a Filter. Keys are visited in sorted order so
// the output does not depend on map iteration order.
func (t *Translator) Translate(raw map[string]any) Filter {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var f Filter
	for _, key := range keys {
		value := raw[key]
		if _, skip := value.(undefined); skip {
			continue
		}

		field, cmps, ok := t.translateKey(key, value)
		if !ok {
			continue
		}
		f.set(field, cmps)
	}
	return f
}

// TranslateSpec translates the specification filter and appends the free
// text search group when both a query and search fields are present.
func (t *Translator) TranslateSpec(spec Specification) Filter {
	f := t.Translate(spec.Filter)
	if spec.Q != "" && len(spec.SearchFields) > 0 {
		for _, field := range spec.SearchFields {
			f.Or = append(f.Or, FieldPredicate{
				Field:       field,
				Comparisons: []Comparison{{Op: OpContains, Value: spec.Q}},
			})
		}
	}
	return f
}

func (t *Translator) primaryKey() string {
	if t == nil || t.PrimaryKey == "" {
		return DefaultPrimaryKey
	}
	return t.PrimaryKey
}

func (t *Translator) translateKey(key string, value any) (string, []Comparison, bool) {
	if key == "id" || key == "ids" {
		if _, isSlice := SliceOf(value); isSlice {
			return t.primaryKey(), []Comparison{{Op: OpIn, Value: value}}, true
		}
		return t.primaryKey(), []Comparison{{Op: OpEq, Value: value}}, true
	}

	if strings.HasSuffix(key, "Ids") {
		return strings.TrimSuffix(key, "Ids") + "Id", []Comparison{{Op: OpEq, Value: value}}, true
	}

	if from, to, ok := dateRange(value); ok {
		return key, []Comparison{{Op: OpGte, Value: from}, {Op: OpLte, Value: to}}, true
	}

	if idx := strings.LastIndex(key, "_"); idx > 0 && idx < len(key)-1 {
		suffix := strings.ToUpper(key[idx+1:])
		if rule, known := suffixRules[suffix]; known {
			field := key[:idx]
			if field == "id" {
				field = t.primaryKey()
			}
			cmps, ok := rule(value)
			return field, cmps, ok
		}
	}

	return key, []Comparison{{Op: OpEq, Value: value}}, true
}

func dateRange(value any) (any, any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, nil, false
	}
	from, hasFrom := m["fromDate"]
	to, hasTo := m["toDate"]
	if !hasFrom || !hasTo {
		return nil, nil, false
	}
	return CoerceTime(from), CoerceTime(to), true
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// CoerceTime converts strings and unix millisecond numbers into time.Time.
// Values that cannot be converted are returned unchanged.
func CoerceTime(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts.UTC()
			}
		}
		if ms, err := strconv.ParseInt(x, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		return time.UnixMilli(int64(x)).UTC()
	case int64:
		return time.UnixMilli(x).UTC()
	case int:
		return time.UnixMilli(int64(x)).UTC()
	}
	return v
}

// SliceOf exposes any slice or array value, except byte slices, as []any.
func SliceOf(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
