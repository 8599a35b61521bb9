package metadata

import (
	"fmt"
	"math"
	"slices"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32
}

func arrayOf[T any](xs []T, conv func(T) Value) Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = conv(x)
	}
	return Array(out)
}

func intValue[T integer](x T) Value { return Int(int64(x)) }

// FromAny converts a Go value, typically one produced by decoding JSON into
// an interface, into a Value.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Document:
		return Object(x), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return intValue(x), nil
	case int8:
		return intValue(x), nil
	case int16:
		return intValue(x), nil
	case int32:
		return intValue(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return intValue(x), nil
	case uint8:
		return intValue(x), nil
	case uint16:
		return intValue(x), nil
	case uint32:
		return intValue(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint64 %d out of range", ErrUnsupportedValue, x)
		}
		return Int(int64(x)), nil
	case map[string]any:
		d, err := DocumentFromAny(x)
		if err != nil {
			return Value{}, err
		}
		return Object(d), nil
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = ev
		}
		return Array(out), nil
	case []Value:
		return Array(x), nil
	case []string:
		return arrayOf(x, String), nil
	case []int:
		return arrayOf(x, intValue[int]), nil
	case []int64:
		return arrayOf(x, Int), nil
	case []float64:
		return arrayOf(x, Float), nil
	}
	return Value{}, fmt.Errorf("%w: type %T", ErrUnsupportedValue, v)
}

// DocumentFromAny converts m into a Document with keys in lexical order.
func DocumentFromAny(m map[string]any) (*Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	d := NewDocument()
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		d.Set(k, v)
	}
	return d, nil
}

// ToAny is the inverse of FromAny. Integers come back as int64, objects as
// map[string]any and arrays as []any.
func ToAny(v Value) any {
	switch v.Kind {
	case KindInt:
		return v.I64
	case KindFloat:
		return v.F64
	case KindString:
		return v.StringValue()
	case KindBool:
		return v.B
	case KindArray:
		out := make([]any, len(v.A))
		for i, e := range v.A {
			out[i] = ToAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]any, v.O.Len())
		for k, e := range v.O.All() {
			out[k] = ToAny(e)
		}
		return out
	}
	return nil
}
