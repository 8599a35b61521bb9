package metadata

import (
	"encoding/json"
	"math"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name string
		val  Value
		want string
	}{
		{"Null", Null(), `null`},
		{"Int", Int(123), `123`},
		{"NegativeInt", Int(-7), `-7`},
		{"Float", Float(3.25), `3.25`},
		{"IntegralFloat", Float(2), `2.0`},
		{"String", String("hello \"world\""), `"hello \"world\""`},
		{"Unicode", String("grüße"), `"grüße"`},
		{"Bool", Bool(true), `true`},
		{"Array", Array([]Value{Int(1), String("a")}), `[1,"a"]`},
		{"EmptyArray", Array([]Value{}), `[]`},
		{"Object", Object(NewDocument(Field{"z", Int(1)}, Field{"a", Null()})), `{"z":1,"a":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.val)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))

			var got Value
			require.NoError(t, json.Unmarshal(b, &got))
			assert.True(t, tt.val.Equal(got), "round trip of %s gave %#v", b, got)
		})
	}
}

func TestValueJSON_NonFinite(t *testing.T) {
	_, err := json.Marshal(Float(math.NaN()))
	require.Error(t, err)

	_, err = Float(math.Inf(1)).MarshalJSON()
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestValueJSON_Numbers(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`42`), &v))
	assert.Equal(t, KindInt, v.Kind)

	require.NoError(t, json.Unmarshal([]byte(`42.5`), &v))
	assert.Equal(t, KindFloat, v.Kind)

	require.NoError(t, json.Unmarshal([]byte(`1e3`), &v))
	assert.Equal(t, KindFloat, v.Kind)
	assert.InDelta(t, 1000.0, v.F64, 0)

	// Beyond int64 falls back to float.
	require.NoError(t, json.Unmarshal([]byte(`18446744073709551616`), &v))
	assert.Equal(t, KindFloat, v.Kind)
}

func TestDocumentJSON_PreservesOrder(t *testing.T) {
	input := `{"source":"a.pdf","page":3,"score":0.5,"tags":["x","y"],"nested":{"b":true,"a":null}}`

	t.Run("encoding/json", func(t *testing.T) {
		var doc Document
		require.NoError(t, json.Unmarshal([]byte(input), &doc))
		assert.Equal(t, []string{"source", "page", "score", "tags", "nested"}, doc.Keys())

		out, err := json.Marshal(&doc)
		require.NoError(t, err)
		assert.Equal(t, input, string(out))
	})

	t.Run("go-json", func(t *testing.T) {
		doc := &Document{}
		require.NoError(t, gojson.Unmarshal([]byte(input), doc))
		out, err := gojson.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, input, string(out))
		assert.Equal(t, []string{"source", "page", "score", "tags", "nested"}, doc.Keys())
	})
}

func TestDocumentJSON_Invalid(t *testing.T) {
	var doc Document
	assert.ErrorIs(t, json.Unmarshal([]byte(`[1,2]`), &doc), ErrNotObject)
	assert.Error(t, json.Unmarshal([]byte(`{"a":`), &doc))

	require.NoError(t, json.Unmarshal([]byte(`null`), &doc))
	assert.Equal(t, 0, doc.Len())
}

func TestDocument(t *testing.T) {
	doc := NewDocument(Field{"a", Int(1)}, Field{"b", Int(2)}, Field{"c", Int(3)})

	doc.Set("b", String("two"))
	assert.Equal(t, []string{"a", "b", "c"}, doc.Keys(), "replacing keeps position")

	assert.True(t, doc.Delete("a"))
	assert.False(t, doc.Delete("a"))
	assert.Equal(t, []string{"b", "c"}, doc.Keys())

	v, ok := doc.Get("c")
	require.True(t, ok)
	assert.Equal(t, Int(3), v)

	var keys []string
	for k := range doc.All() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"b", "c"}, keys)

	var nilDoc *Document
	assert.Equal(t, 0, nilDoc.Len())
	_, ok = nilDoc.Get("x")
	assert.False(t, ok)
	assert.True(t, nilDoc.Equal(&Document{}))
}

func TestDocumentClone(t *testing.T) {
	inner := NewDocument(Field{"k", Int(1)})
	doc := NewDocument(Field{"arr", Array([]Value{Int(1)})}, Field{"obj", Object(inner)})

	clone := doc.Clone()
	require.True(t, doc.Equal(clone))

	inner.Set("k", Int(2))
	arr, _ := doc.Get("arr")
	arr.A[0] = Int(9)

	assert.False(t, doc.Equal(clone))
	obj, _ := clone.Get("obj")
	k, _ := obj.O.Get("k")
	assert.Equal(t, Int(1), k)

	var nilDoc *Document
	assert.Nil(t, nilDoc.Clone())
}
