package metadata

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"Nil", nil, Null()},
		{"Value", String("x"), String("x")},
		{"Bool", true, Bool(true)},
		{"String", "page 3", String("page 3")},
		{"Float64", 0.25, Float(0.25)},
		{"Float32", float32(1.5), Float(1.5)},
		{"Int", 7, Int(7)},
		{"Int8", int8(-3), Int(-3)},
		{"Uint16", uint16(9), Int(9)},
		{"Uint32Max", uint32(math.MaxUint32), Int(math.MaxUint32)},
		{"Uint64", uint64(math.MaxInt64), Int(math.MaxInt64)},
		{"Strings", []string{"a", "b"}, Array([]Value{String("a"), String("b")})},
		{"Ints", []int{1, 2}, Array([]Value{Int(1), Int(2)})},
		{"Int64s", []int64{3}, Array([]Value{Int(3)})},
		{"Floats", []float64{0.5}, Array([]Value{Float(0.5)})},
		{"Mixed", []any{1, "s", nil}, Array([]Value{Int(1), String("s"), Null()})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromAny(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %#v", got)
		})
	}

	t.Run("Errors", func(t *testing.T) {
		for _, in := range []any{
			make(chan int),
			[]byte("raw"),
			uint64(math.MaxInt64) + 1,
			[]any{"ok", struct{}{}},
			map[string]any{"k": func() {}},
		} {
			_, err := FromAny(in)
			assert.ErrorIs(t, err, ErrUnsupportedValue, "%T", in)
		}
	})
}

func TestDocumentFromAny(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"source":"a.pdf","page":3,"tags":["x"],"pos":{"line":1.5}}`), &decoded))

	doc, err := DocumentFromAny(decoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"page", "pos", "source", "tags"}, doc.Keys())

	page, _ := doc.Get("page")
	assert.Equal(t, KindFloat, page.Kind, "encoding/json decodes numbers as float64")

	pos, _ := doc.Get("pos")
	inner, ok := pos.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"line"}, inner.Keys())

	_, err = DocumentFromAny(map[string]any{"bad": make(chan int)})
	require.ErrorIs(t, err, ErrUnsupportedValue)
	assert.Contains(t, err.Error(), `key "bad"`)
}

func TestToAny(t *testing.T) {
	in := map[string]any{
		"n":    int64(1),
		"f":    0.5,
		"s":    "x",
		"b":    false,
		"nil":  nil,
		"list": []any{int64(2), "y"},
		"obj":  map[string]any{"k": true},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}
