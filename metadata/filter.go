package metadata

import (
	"cmp"
	"fmt"
	"strings"
)

// Operator is a comparison applied by a Filter.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpGreaterThan  Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLessThan     Operator = "lt"
	OpLessEqual    Operator = "lte"
	// OpIn matches when the field equals one element of an array value.
	OpIn Operator = "in"
	// OpContains matches a substring of a string field or an element of an
	// array field.
	OpContains Operator = "contains"
)

// Filter is one condition on a metadata field. Key may be a dotted path into
// nested objects, e.g. "source.page". A missing field never matches, not even
// under OpNotEqual.
type Filter struct {
	Key      string   `json:"key"`
	Operator Operator `json:"op"`
	Value    Value    `json:"value"`
}

// FilterSet is a conjunction of filters.
type FilterSet struct {
	Filters []Filter `json:"filters"`
}

// NewFilterSet creates a filter set.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Validate checks that every filter names a key and a known operator, and
// that OpIn carries an array.
func (fs *FilterSet) Validate() error {
	if fs == nil {
		return nil
	}
	for i, f := range fs.Filters {
		if strings.Trim(f.Key, ".") == "" {
			return fmt.Errorf("filter %d: empty key", i)
		}
		switch f.Operator {
		case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpContains:
		case OpIn:
			if f.Value.Kind != KindArray {
				return fmt.Errorf("filter %d: %s needs an array value, got %s", i, f.Operator, f.Value.Kind)
			}
		default:
			return fmt.Errorf("filter %d: unknown operator %q", i, f.Operator)
		}
	}
	return nil
}

// Matches reports whether every filter matches doc. A nil set matches
// everything.
func (fs *FilterSet) Matches(doc *Document) bool {
	if fs == nil {
		return true
	}
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(doc) {
			return false
		}
	}
	return true
}

// Matches reports whether doc satisfies f.
func (f *Filter) Matches(doc *Document) bool {
	v, ok := lookup(doc, f.Key)
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return equalValues(v, f.Value)
	case OpNotEqual:
		return !equalValues(v, f.Value)
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		c, ok := order(v, f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case OpGreaterThan:
			return c > 0
		case OpGreaterEqual:
			return c >= 0
		case OpLessThan:
			return c < 0
		default:
			return c <= 0
		}
	case OpIn:
		return f.Value.Kind == KindArray && containsValue(f.Value.A, v)
	case OpContains:
		switch v.Kind {
		case KindString:
			return f.Value.Kind == KindString && strings.Contains(v.StringValue(), f.Value.StringValue())
		case KindArray:
			return containsValue(v.A, f.Value)
		}
	}
	return false
}

// lookup resolves a dotted path. A key that exists verbatim wins over a
// nested interpretation.
func lookup(doc *Document, path string) (Value, bool) {
	if v, ok := doc.Get(path); ok {
		return v, true
	}
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return Value{}, false
	}
	v, ok := doc.Get(head)
	if !ok || v.Kind != KindObject {
		return Value{}, false
	}
	return lookup(v.O, rest)
}

// equalValues is Value.Equal except that ints and floats compare
// numerically.
func equalValues(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		c, _ := order(a, b)
		return c == 0
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindArray {
		if len(a.A) != len(b.A) {
			return false
		}
		for i := range a.A {
			if !equalValues(a.A[i], b.A[i]) {
				return false
			}
		}
		return true
	}
	return a.Equal(b)
}

// order compares numbers with numbers and strings with strings. ok is false
// for any other pair.
func order(a, b Value) (c int, ok bool) {
	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return cmp.Compare(a.I64, b.I64), true
	case isNumber(a) && isNumber(b):
		return cmp.Compare(asFloat64(a), asFloat64(b)), true
	case a.Kind == KindString && b.Kind == KindString:
		return strings.Compare(a.StringValue(), b.StringValue()), true
	}
	return 0, false
}

func containsValue(list []Value, v Value) bool {
	for _, e := range list {
		if equalValues(e, v) {
			return true
		}
	}
	return false
}

func isNumber(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func asFloat64(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I64)
	}
	return v.F64
}
