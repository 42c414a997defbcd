package query

// Operator is a comparison applied to a single field.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpIn       Operator = "in"
	OpAll      Operator = "all"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpExists   Operator = "exists"
	OpContains Operator = "contains"
)

// IsOrdering reports whether the operator is one of the range comparisons.
// Ordering comparisons on the same field combine into a single predicate.
func (o Operator) IsOrdering() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Comparison is one operator and its operand.
type Comparison struct {
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// FieldPredicate holds every comparison applied to one logical field.
// All comparisons must hold for a record to match.
type FieldPredicate struct {
	Field       string       `json:"field"`
	Comparisons []Comparison `json:"comparisons"`
}

// Filter is a storage neutral predicate. Fields are ANDed together and hold
// at most one predicate per logical field. Or, when present, is ANDed with
// Fields and matches if any of its predicates matches.
type Filter struct {
	Fields []FieldPredicate `json:"fields"`
	Or     []FieldPredicate `json:"or,omitempty"`
}

// Where starts a filter with a single comparison.
func Where(field string, op Operator, value any) Filter {
	return Filter{}.And(field, op, value)
}

// And returns a copy of f with the comparison merged in.
func (f Filter) And(field string, op Operator, value any) Filter {
	out := f.clone()
	out.set(field, []Comparison{{Op: op, Value: value}})
	return out
}

// Merge returns a copy of f with every predicate of other merged in. The
// OR groups are concatenated.
func (f Filter) Merge(other Filter) Filter {
	out := f.clone()
	for _, p := range other.Fields {
		out.set(p.Field, p.Comparisons)
	}
	out.Or = append(out.Or, other.Or...)
	return out
}

// Field returns the predicate for name.
func (f Filter) Field(name string) (FieldPredicate, bool) {
	for _, p := range f.Fields {
		if p.Field == name {
			return p, true
		}
	}
	return FieldPredicate{}, false
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.Fields) == 0 && len(f.Or) == 0
}

func (f Filter) clone() Filter {
	out := Filter{
		Fields: make([]FieldPredicate, len(f.Fields)),
		Or:     append([]FieldPredicate(nil), f.Or...),
	}
	for i, p := range f.Fields {
		out.Fields[i] = FieldPredicate{
			Field:       p.Field,
			Comparisons: append([]Comparison(nil), p.Comparisons...),
		}
	}
	return out
}

// set installs comparisons for field. When both the existing and incoming
// comparisons are ordering comparisons they are combined, replacing any
// comparison with the same operator. Otherwise the incoming set wins.
func (f *Filter) set(field string, cmps []Comparison) {
	for i, p := range f.Fields {
		if p.Field != field {
			continue
		}
		if allOrdering(p.Comparisons) && allOrdering(cmps) {
			merged := append([]Comparison(nil), p.Comparisons...)
			for _, c := range cmps {
				replaced := false
				for j := range merged {
					if merged[j].Op == c.Op {
						merged[j] = c
						replaced = true
					}
				}
				if !replaced {
					merged = append(merged, c)
				}
			}
			f.Fields[i].Comparisons = merged
			return
		}
		f.Fields[i].Comparisons = append([]Comparison(nil), cmps...)
		return
	}
	f.Fields = append(f.Fields, FieldPredicate{Field: field, Comparisons: append([]Comparison(nil), cmps...)})
}

func allOrdering(cmps []Comparison) bool {
	if len(cmps) == 0 {
		return false
	}
	for _, c := range cmps {
		if !c.Op.IsOrdering() {
			return false
		}
	}
	return true
}
