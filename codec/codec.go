// Package codec centralizes the JSON encoding used for metadata sidecars and
// the REST binding.
//
// The sidecar is a plain JSON document, so every codec must produce bytes the
// others can read. Codecs differ only in speed.
package codec

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	// MarshalIndent encodes v with two-space indentation.
	MarshalIndent(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ErrUnknownCodec is returned by ByName for names no codec is registered
// under.
var ErrUnknownCodec = errors.New("unknown codec")

// Default is the codec used unless another is configured.
var Default Codec = GoJSON{}

const indent = "  "

var builtin = map[string]Codec{
	JSON{}.Name():   JSON{},
	GoJSON{}.Name(): GoJSON{},
}

// ByName returns the built-in codec registered under name. Matching ignores
// case and surrounding space.
func ByName(name string) (Codec, error) {
	c, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownCodec, name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the built-in codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
