package flat

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/internal/fs"
	"github.com/hupe1980/chunkcanvas/persistence"
)

// File layout (little-endian):
//
//	FileHeader (64 bytes): magic, version, metric code, count, dimension
//	count x { id int64, vector [dimension]float32 }   ascending by id
//	CRC32 (IEEE) of all preceding bytes

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func metricCode(m distance.Metric) (uint8, error) {
	switch m {
	case distance.MetricCosine:
		return persistence.MetricCodeCosine, nil
	case distance.MetricL2:
		return persistence.MetricCodeL2, nil
	case distance.MetricIP:
		return persistence.MetricCodeIP, nil
	default:
		return 0, fmt.Errorf("%w %q", distance.ErrUnsupportedMetric, string(m))
	}
}

func metricFromCode(code uint8) (distance.Metric, error) {
	switch code {
	case persistence.MetricCodeCosine:
		return distance.MetricCosine, nil
	case persistence.MetricCodeL2:
		return distance.MetricL2, nil
	case persistence.MetricCodeIP:
		return distance.MetricIP, nil
	default:
		return "", fmt.Errorf("unknown metric code %d", code)
	}
}

// SaveToFile atomically replaces filename with the binary form of the index.
func (f *Flat) SaveToFile(fsys fs.FileSystem, filename string) error {
	return persistence.SaveToFile(fsys, filename, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// LoadFromFile loads an index from filename. Errors opening the file are
// returned as is; decoding failures wrap ErrCorruptIndex.
func LoadFromFile(fsys fs.FileSystem, filename string) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(fsys, filename, func(r io.Reader) error {
		var err error
		f, err = Read(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTo writes the index in binary format.
//
// It matches the io.WriterTo interface.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	n, _, err := f.writeTo(w)
	return n, err
}

// Checksum returns the CRC32 trailer that WriteTo would write for the
// current contents. Equal checksums identify byte-identical index files.
func (f *Flat) Checksum() (uint32, error) {
	_, sum, err := f.writeTo(io.Discard)
	return sum, err
}

func (f *Flat) writeTo(w io.Writer) (int64, uint32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cw := &countingWriter{w: w}
	sum := persistence.NewChecksumWriter(cw)
	writer := persistence.NewBinaryIndexWriter(sum)

	code, err := metricCode(f.metric)
	if err != nil {
		return cw.n, 0, err
	}
	header := &persistence.FileHeader{
		Metric:      code,
		VectorCount: uint64(len(f.slots)),
		Dimension:   uint32(f.dimension),
	}
	if err := writer.WriteHeader(header); err != nil {
		return cw.n, 0, err
	}

	for _, id := range slices.Sorted(maps.Keys(f.slots)) {
		if err := writer.WriteInt64(id); err != nil {
			return cw.n, 0, err
		}
		if err := writer.WriteFloat32Slice(f.vectorAt(f.slots[id])); err != nil {
			return cw.n, 0, err
		}
	}

	checksum := sum.Sum()
	if err := persistence.NewBinaryIndexWriter(cw).WriteUint32(checksum); err != nil {
		return cw.n, 0, err
	}
	return cw.n, checksum, nil
}

// Read decodes an index written by WriteTo. All failures wrap ErrCorruptIndex.
func Read(r io.Reader) (*Flat, error) {
	f := &Flat{}
	if _, err := f.ReadFrom(r); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFrom replaces the receiver's contents with an index decoded from r.
//
// It matches the io.ReaderFrom interface.
func (f *Flat) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	loaded, err := decode(cr)
	if err != nil {
		return cr.n, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimension = loaded.dimension
	f.metric = loaded.metric
	f.distFunc = loaded.distFunc
	f.data = loaded.data
	f.slotIDs = loaded.slotIDs
	f.slots = loaded.slots
	f.free = loaded.free
	return cr.n, nil
}

func decode(r io.Reader) (*Flat, error) {
	sum := persistence.NewChecksumReader(r)
	reader := persistence.NewBinaryIndexReader(sum)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, err
	}
	metric, err := metricFromCode(header.Metric)
	if err != nil {
		return nil, err
	}
	f, err := New(int(header.Dimension), metric)
	if err != nil {
		return nil, err
	}

	count := int(header.VectorCount)
	vec := make([]float32, f.dimension)
	for i := 0; i < count; i++ {
		id, err := reader.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if err := reader.ReadFloat32SliceInto(vec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := f.slots[id]; dup {
			return nil, fmt.Errorf("duplicate id %d", id)
		}
		f.addLocked(id, vec)
	}

	expected, err := persistence.NewBinaryIndexReader(r).ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("checksum trailer: %w", err)
	}
	if err := sum.Verify(expected); err != nil {
		return nil, err
	}

	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n != 0 {
		return nil, errors.New("trailing data after checksum")
	}
	return f, nil
}
