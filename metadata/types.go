package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unique"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
	// KindArray represents an array value.
	KindArray
	// KindObject represents a nested document.
	KindObject
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// ErrUnsupportedValue is returned when a value cannot be represented as JSON.
var ErrUnsupportedValue = errors.New("unsupported metadata value")

// Value is a small typed value used for metadata documents and filters.
//
// Its JSON form is the plain JSON value (a string is a JSON string, an object
// is a JSON object), so sidecars stay readable by any tool. Integers and floats
// are kept apart: a JSON number without fraction or exponent decodes as
// KindInt.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	s    unique.Handle[string]
	B    bool
	A    []Value
	O    *Document
}

// StringValue returns the string value if Kind is KindString, otherwise empty string.
func (v Value) StringValue() string {
	if v.Kind == KindString {
		return v.s.Value()
	}
	return ""
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s.Value(), true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// AsArray returns the array value if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// AsObject returns the nested document if Kind is KindObject.
func (v Value) AsObject() (*Document, bool) {
	if v.Kind != KindObject {
		return nil, false
	}
	return v.O, true
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, s: unique.Make(v)} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Array returns an array Value.
func Array(v []Value) Value { return Value{Kind: KindArray, A: v} }

// Object returns a Value wrapping a nested document.
func Object(d *Document) Value {
	if d == nil {
		d = &Document{}
	}
	return Value{Kind: KindObject, O: d}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		if v.A == nil {
			return v
		}
		arr := make([]Value, len(v.A))
		for i := range v.A {
			arr[i] = v.A[i].Clone()
		}
		return Value{Kind: KindArray, A: arr}
	case KindObject:
		return Value{Kind: KindObject, O: v.O.Clone()}
	default:
		return v
	}
}

// Equal reports whether v and other hold the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull, KindInvalid:
		return true
	case KindInt:
		return v.I64 == other.I64
	case KindFloat:
		return v.F64 == other.F64
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.B == other.B
	case KindArray:
		if len(v.A) != len(other.A) {
			return false
		}
		for i := range v.A {
			if !v.A[i].Equal(other.A[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.O.Equal(other.O)
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(dst []byte) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindInt:
		return strconv.AppendInt(dst, v.I64, 10), nil
	case KindFloat:
		return appendFloat(dst, v.F64)
	case KindString:
		return appendString(dst, v.s.Value())
	case KindBool:
		return strconv.AppendBool(dst, v.B), nil
	case KindArray:
		dst = append(dst, '[')
		for i := range v.A {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = v.A[i].appendJSON(dst); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindObject:
		return v.O.appendJSON(dst)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedValue, v.Kind)
	}
}

// appendFloat always writes a fraction or exponent so the value decodes as a
// float again.
func appendFloat(dst []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return append(dst, s...), nil
}

func appendString(dst []byte, s string) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := newDecoder(data)
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	*v = val
	return nil
}

func newDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

func expectEOF(dec *json.Decoder) error {
	if dec.More() {
		return errors.New("metadata: trailing data after JSON value")
	}
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '[':
			arr := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(arr), nil
		case '{':
			doc, err := decodeObjectBody(dec)
			if err != nil {
				return Value{}, err
			}
			return Object(doc), nil
		}
	}
	return Value{}, fmt.Errorf("metadata: unexpected JSON token %v", tok)
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("metadata: invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// decodeObjectBody reads the members of an object whose '{' was already consumed.
func decodeObjectBody(dec *json.Decoder) (*Document, error) {
	doc := &Document{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("metadata: object key is %T", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}
