package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"

	"github.com/hupe1980/chunkcanvas/codec"
	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/internal/fs"
	"github.com/hupe1980/chunkcanvas/persistence"
)

// ErrCorruptMetadata is returned when a sidecar file exists but cannot be
// parsed as a JSON object.
var ErrCorruptMetadata = errors.New("corrupt metadata sidecar")

// Sidecar is the metadata store of one index: the ID to Record mapping plus
// the index-level dimension and metric. It is not safe for concurrent use.
type Sidecar struct {
	dimension int
	metric    distance.Metric
	records   map[int64]Record
	// checksum is the CRC32 trailer of the index file this sidecar was
	// written for. It is only meaningful when hasChecksum is set.
	checksum    uint32
	hasChecksum bool
	// extra holds record entries whose key is not an integer. They are
	// written back unchanged but never surface as records.
	extra map[string]json.RawMessage
}

// NewSidecar returns the empty default: no records, unset dimension and the
// cosine metric.
func NewSidecar() *Sidecar {
	return &Sidecar{
		metric:  distance.DefaultMetric,
		records: make(map[int64]Record),
	}
}

// LoadSidecar reads the sidecar at path. A missing file yields NewSidecar().
func LoadSidecar(fsys fs.FileSystem, path string, c codec.Codec) (*Sidecar, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSidecar(), nil
		}
		return nil, err
	}
	return DecodeSidecar(data, c)
}

// DecodeSidecar parses sidecar JSON. Missing or malformed fields fall back to
// their defaults; only a document that is not a JSON object is rejected.
func DecodeSidecar(data []byte, c codec.Codec) (*Sidecar, error) {
	if c == nil {
		c = codec.Default
	}

	var top map[string]json.RawMessage
	if err := c.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptMetadata, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorruptMetadata)
	}

	s := NewSidecar()

	if raw, ok := top["dimension"]; ok {
		var dim int
		if err := json.Unmarshal(raw, &dim); err == nil && dim > 0 {
			s.dimension = dim
		}
	}

	if raw, ok := top["metric"]; ok {
		var m string
		if err := json.Unmarshal(raw, &m); err == nil {
			s.metric = distance.MetricOrDefault(m)
		}
	}

	if raw, ok := top["index_checksum"]; ok {
		var sum *uint32
		if err := json.Unmarshal(raw, &sum); err == nil && sum != nil {
			s.checksum, s.hasChecksum = *sum, true
		}
	}

	raw, ok := top["records"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return s, nil
	}

	var entries map[string]json.RawMessage
	if err := c.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: records: %w", ErrCorruptMetadata, err)
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	// "05" and "5" name the same record; decoding in key order picks one
	// deterministically.
	slices.Sort(keys)
	for _, key := range keys {
		entry := entries[key]
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			if s.extra == nil {
				s.extra = make(map[string]json.RawMessage)
			}
			s.extra[key] = entry
			continue
		}
		var r Record
		if err := r.UnmarshalJSON(entry); err != nil {
			return nil, fmt.Errorf("%w: record %s: %w", ErrCorruptMetadata, key, err)
		}
		s.records[id] = r
	}
	return s, nil
}

// Dimension returns the recorded dimension and whether it is set.
func (s *Sidecar) Dimension() (int, bool) {
	return s.dimension, s.dimension > 0
}

// SetDimension records the index dimension.
func (s *Sidecar) SetDimension(d int) { s.dimension = d }

// IndexChecksum returns the checksum of the index file the sidecar belongs
// to, and whether one was recorded.
func (s *Sidecar) IndexChecksum() (uint32, bool) {
	return s.checksum, s.hasChecksum
}

// SetIndexChecksum records the checksum of the matching index file.
func (s *Sidecar) SetIndexChecksum(sum uint32) {
	s.checksum, s.hasChecksum = sum, true
}

// Metric returns the recorded metric.
func (s *Sidecar) Metric() distance.Metric { return s.metric }

// SetMetric records the index metric; invalid metrics become cosine.
func (s *Sidecar) SetMetric(m distance.Metric) {
	s.metric = distance.MetricOrDefault(string(m))
}

// Upsert inserts or fully replaces the record for id.
func (s *Sidecar) Upsert(id int64, r Record) {
	if r.Metadata == nil {
		r.Metadata = &Document{}
	}
	s.records[id] = r
}

// Remove deletes the given IDs and returns how many were present.
func (s *Sidecar) Remove(ids ...int64) int {
	n := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	return n
}

// Get returns the record for id.
func (s *Sidecar) Get(id int64) (Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Len returns the number of records with an integer ID.
func (s *Sidecar) Len() int { return len(s.records) }

// IDs returns all record IDs in ascending order.
func (s *Sidecar) IDs() []int64 {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type sidecarFile struct {
	Dimension     *int      `json:"dimension"`
	Metric        string    `json:"metric"`
	IndexChecksum *uint32   `json:"index_checksum,omitempty"`
	Records       recordSet `json:"records"`
}

type recordSet struct {
	ids     []int64
	records map[int64]Record
	extra   map[string]json.RawMessage
}

// MarshalJSON writes records in ascending ID order followed by any
// non-integer entries in key order.
func (rs recordSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
	}
	for _, id := range rs.ids {
		sep()
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatInt(id, 10))
		buf.WriteString(`":`)
		b, err := rs.records[id].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		buf.Write(b)
	}

	keys := make([]string, 0, len(rs.extra))
	for k := range rs.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sep()
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(rs.extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode renders the sidecar as indented JSON.
func (s *Sidecar) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	file := sidecarFile{
		Metric:        s.metric.String(),
		Records: recordSet{
			ids:     s.IDs(),
			records: s.records,
			extra:   s.extra,
		},
	}
	if s.hasChecksum {
		sum := s.checksum
		file.IndexChecksum = &sum
	}
	if dim, ok := s.Dimension(); ok {
		file.Dimension = &dim
	}
	return c.MarshalIndent(file)
}

// Persist atomically replaces the sidecar file at path.
func (s *Sidecar) Persist(fsys fs.FileSystem, path string, c codec.Codec) error {
	data, err := s.Encode(c)
	if err != nil {
		return err
	}
	return persistence.SaveToFile(fsys, path, writeAll(data))
}

// Stage writes the sidecar next to path without replacing it; the returned
// handle commits or aborts the replacement.
func (s *Sidecar) Stage(fsys fs.FileSystem, path string, c codec.Codec) (*persistence.Staged, error) {
	data, err := s.Encode(c)
	if err != nil {
		return nil, err
	}
	return persistence.Stage(fsys, path, writeAll(data))
}

func writeAll(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}
