package metadata

import (
	"bytes"
	"encoding/json"
)

// Record is the text and metadata payload stored for one vector ID.
type Record struct {
	Text     string
	Metadata *Document
}

// Clone returns a deep copy of r with a non-nil Metadata.
func (r Record) Clone() Record {
	md := r.Metadata.Clone()
	if md == nil {
		md = &Document{}
	}
	return Record{Text: r.Text, Metadata: md}
}

// MarshalJSON writes {"text": ..., "metadata": {...}}. A nil Metadata is
// written as an empty object.
func (r Record) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64+len(r.Text))
	buf = append(buf, `{"text":`...)
	var err error
	if buf, err = appendString(buf, r.Text); err != nil {
		return nil, err
	}
	buf = append(buf, `,"metadata":`...)
	if buf, err = r.Metadata.appendJSON(buf); err != nil {
		return nil, err
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON is lenient: a non-object record decodes as empty text and
// metadata, a non-string text as "" and a non-object metadata as empty.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{Metadata: &Document{}}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if !json.Valid(data) {
			return err
		}
		return nil
	}

	if raw, ok := fields["text"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			r.Text = text
		}
	}
	if raw, ok := fields["metadata"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		md := &Document{}
		if err := md.UnmarshalJSON(raw); err != nil {
			return err
		}
		r.Metadata = md
	}
	return nil
}
