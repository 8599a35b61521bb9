package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// JSON wraps encoding/json.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)       { return json.Marshal(v) }
func (JSON) MarshalIndent(v any) ([]byte, error) { return json.MarshalIndent(v, "", indent) }
func (JSON) Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }
func (JSON) Name() string                        { return "json" }

// GoJSON wraps github.com/goccy/go-json, a drop-in replacement for
// encoding/json that is faster on the large record maps of big sidecars.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)       { return gojson.Marshal(v) }
func (GoJSON) MarshalIndent(v any) ([]byte, error) { return gojson.MarshalIndent(v, "", indent) }
func (GoJSON) Unmarshal(data []byte, v any) error  { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                        { return "go-json" }
