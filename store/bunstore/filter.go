package bunstore

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/internal/naming"
	"github.com/goliatone/go-crud-service/query"
)

// CodeFilterField is the validation code for a filter, sort or select field
// that does not map to a column.
const CodeFilterField = "QUERY.FIELD_UNKNOWN"

// cond is one rendered SQL condition.
type cond struct {
	expr string
	args []any
}

// columns resolves API field names to column names of one table.
type columns struct {
	table *schema.Table
	// lower is the SQL function folding case for search.
	lower string
}

// resolve maps name to a column. Exact column names win, then the snake
// case form of a camel case API name ("accountId" -> "account_id").
func (c columns) resolve(name string) (string, bool) {
	if _, ok := c.table.FieldMap[name]; ok {
		return name, true
	}
	snake := naming.ToSnake(name)
	if _, ok := c.table.FieldMap[snake]; ok {
		return snake, true
	}
	return "", false
}

func (c columns) resolveAll(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	var bad []apperror.Violation
	for _, n := range names {
		col, ok := c.resolve(n)
		if !ok {
			bad = append(bad, unknownField(n))
			continue
		}
		out = append(out, col)
	}
	if len(bad) > 0 {
		return nil, apperror.Validation(bad)
	}
	return out, nil
}

func unknownField(name string) apperror.Violation {
	return apperror.Violation{
		Field: name,
		Value: name,
		Codes: []string{CodeFilterField},
	}
}

// compiled is a filter rendered into conditions. and holds conditions
// joined with AND, or holds the search alternatives.
type compiled struct {
	and []cond
	or  []cond
}

func (c compiled) apply(qb bun.QueryBuilder) bun.QueryBuilder {
	for _, w := range c.and {
		qb = qb.Where(w.expr, w.args...)
	}
	if len(c.or) > 0 {
		qb = qb.WhereGroup(" AND ", func(q bun.QueryBuilder) bun.QueryBuilder {
			for _, w := range c.or {
				q = q.WhereOr(w.expr, w.args...)
			}
			return q
		})
	}
	return qb
}

func (c compiled) empty() bool {
	return len(c.and) == 0 && len(c.or) == 0
}

// compile renders filter. When qualify is set columns are prefixed with the
// table alias, which select queries need once relations are joined.
func (c columns) compile(filter query.Filter, qualify bool) (compiled, error) {
	var out compiled
	var bad []apperror.Violation

	for _, pred := range filter.Fields {
		col, ok := c.resolve(pred.Field)
		if !ok {
			bad = append(bad, unknownField(pred.Field))
			continue
		}
		for _, cmp := range pred.Comparisons {
			out.and = append(out.and, c.comparison(ident(col, qualify), cmp)...)
		}
	}

	for _, pred := range filter.Or {
		col, ok := c.resolve(pred.Field)
		if !ok {
			bad = append(bad, unknownField(pred.Field))
			continue
		}
		for _, cmp := range pred.Comparisons {
			out.or = append(out.or, c.comparison(ident(col, qualify), cmp)...)
		}
	}

	if len(bad) > 0 {
		return compiled{}, apperror.Validation(bad)
	}
	return out, nil
}

// ident returns the placeholder expression and argument for a column.
func ident(col string, qualify bool) cond {
	if qualify {
		return cond{expr: "?TableAlias.?", args: []any{bun.Ident(col)}}
	}
	return cond{expr: "?", args: []any{bun.Ident(col)}}
}

func with(col cond, tail string, args ...any) cond {
	return cond{
		expr: col.expr + " " + tail,
		args: append(append([]any{}, col.args...), args...),
	}
}

// comparison renders one comparison. Equality against a slice is set
// membership. A nil ordering bound, as produced by a malformed range, adds
// no condition. OpAll on a scalar column requires the column to equal every
// value.
func (c columns) comparison(col cond, cmp query.Comparison) []cond {
	switch cmp.Op {
	case query.OpEq:
		if cmp.Value == nil {
			return []cond{with(col, "IS NULL")}
		}
		if values, ok := query.SliceOf(cmp.Value); ok {
			return []cond{in(col, values)}
		}
		return []cond{with(col, "= ?", cmp.Value)}
	case query.OpNe:
		if cmp.Value == nil {
			return []cond{with(col, "IS NOT NULL")}
		}
		if values, ok := query.SliceOf(cmp.Value); ok {
			if len(values) == 0 {
				return nil
			}
			return []cond{with(col, "NOT IN (?)", bun.In(values))}
		}
		return []cond{with(col, "<> ?", cmp.Value)}
	case query.OpIn:
		values, ok := query.SliceOf(cmp.Value)
		if !ok {
			values = []any{cmp.Value}
		}
		return []cond{in(col, values)}
	case query.OpAll:
		values, ok := query.SliceOf(cmp.Value)
		if !ok {
			values = []any{cmp.Value}
		}
		out := make([]cond, 0, len(values))
		for _, v := range values {
			out = append(out, with(col, "= ?", v))
		}
		return out
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		if cmp.Value == nil {
			return nil
		}
		return []cond{with(col, sqlOperator(cmp.Op)+" ?", cmp.Value)}
	case query.OpExists:
		if exists, _ := cmp.Value.(bool); exists {
			return []cond{with(col, "IS NOT NULL")}
		}
		return []cond{with(col, "IS NULL")}
	case query.OpContains:
		lower := c.lower
		if lower == "" {
			lower = "LOWER"
		}
		needle := strings.ToLower(fmt.Sprint(cmp.Value))
		return []cond{{
			expr: lower + "(" + col.expr + ") LIKE ? ESCAPE '\\'",
			args: append(append([]any{}, col.args...), "%"+escapeLike(needle)+"%"),
		}}
	}
	return nil
}

func in(col cond, values []any) cond {
	if len(values) == 0 {
		return cond{expr: "1 = 0"}
	}
	return with(col, "IN (?)", bun.In(values))
}

func sqlOperator(op query.Operator) string {
	switch op {
	case query.OpGt:
		return ">"
	case query.OpGte:
		return ">="
	case query.OpLt:
		return "<"
	case query.OpLte:
		return "<="
	}
	return "="
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
