package metadata

import (
	"encoding/json"
	"errors"
	"iter"
	"slices"
)

// Field is a single key/value pair of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is a schema-free metadata mapping that remembers the order in
// which keys were first set. The zero value is an empty document; a nil
// *Document behaves as empty for all read methods.
type Document struct {
	fields []Field
	index  map[string]int
}

// NewDocument builds a document from fields. Later duplicates replace earlier
// values but keep the first position.
func NewDocument(fields ...Field) *Document {
	d := &Document{}
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}
	return d.fields[i].Value, true
}

// Set stores v under key. Existing keys keep their position.
func (d *Document) Set(key string, v Value) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = v
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, Field{Key: key, Value: v})
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if d == nil {
		return false
	}
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.fields = slices.Delete(d.fields, i, i+1)
	delete(d.index, key)
	for j := i; j < len(d.fields); j++ {
		d.index[d.fields[j].Key] = j
	}
	return true
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Key
	}
	return keys
}

// All iterates over the fields in insertion order.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, f := range d.fields {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}
}

// Clone creates a deep copy of the document. Cloning nil yields nil.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := &Document{
		fields: make([]Field, len(d.fields)),
		index:  make(map[string]int, len(d.fields)),
	}
	for i, f := range d.fields {
		clone.fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		clone.index[f.Key] = i
	}
	return clone
}

// Equal reports whether both documents hold the same keys in the same order
// with equal values. nil equals an empty document.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for i := 0; i < d.Len(); i++ {
		a, b := d.fields[i], other.fields[i]
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler. Keys are written in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.appendJSON(nil)
}

func (d *Document) appendJSON(dst []byte) ([]byte, error) {
	dst = append(dst, '{')
	for i := 0; i < d.Len(); i++ {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		if dst, err = appendString(dst, d.fields[i].Key); err != nil {
			return nil, err
		}
		dst = append(dst, ':')
		if dst, err = d.fields[i].Value.appendJSON(dst); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

// ErrNotObject is returned when decoding a Document from a non-object value.
var ErrNotObject = errors.New("metadata: JSON value is not an object")

// UnmarshalJSON implements json.Unmarshaler. The key order of the input is kept.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := newDecoder(data)
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = Document{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}
	doc, err := decodeObjectBody(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	*d = *doc
	return nil
}
