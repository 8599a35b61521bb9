package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hupe1980/chunkcanvas/internal/fs"
)

const ioBufferSize = 256 * 1024

// BinaryIndexWriter writes little-endian index data.
type BinaryIndexWriter struct {
	w       io.Writer
	scratch []byte
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{w: w}
}

// WriteHeader stamps magic and version onto header and writes it.
func (bw *BinaryIndexWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, binary.LittleEndian, header)
}

// WriteUint32 writes a single uint32.
func (bw *BinaryIndexWriter) WriteUint32(v uint32) error {
	bw.scratch = binary.LittleEndian.AppendUint32(bw.scratch[:0], v)
	_, err := bw.w.Write(bw.scratch)
	return err
}

// WriteInt64 writes a single int64.
func (bw *BinaryIndexWriter) WriteInt64(v int64) error {
	bw.scratch = binary.LittleEndian.AppendUint64(bw.scratch[:0], uint64(v))
	_, err := bw.w.Write(bw.scratch)
	return err
}

// WriteFloat32Slice writes vec as consecutive little-endian float32 values.
func (bw *BinaryIndexWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	bw.scratch = bw.scratch[:0]
	for _, v := range vec {
		bw.scratch = binary.LittleEndian.AppendUint32(bw.scratch, math.Float32bits(v))
	}
	_, err := bw.w.Write(bw.scratch)
	return err
}

// BinaryIndexReader reads little-endian index data.
type BinaryIndexReader struct {
	r       io.Reader
	scratch [8]byte
}

// NewBinaryIndexReader creates a new binary reader.
func NewBinaryIndexReader(r io.Reader) *BinaryIndexReader {
	return &BinaryIndexReader{r: r}
}

// ReadHeader reads and validates the file header.
func (br *BinaryIndexReader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if header.Dimension == 0 || header.Dimension > MaxDimension {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidHeader, header.Dimension)
	}
	if header.VectorCount > MaxVectorCount {
		return nil, fmt.Errorf("%w: vector count %d exceeds limit", ErrInvalidHeader, header.VectorCount)
	}
	return &header, nil
}

// ReadUint32 reads a single uint32.
func (br *BinaryIndexReader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(br.r, br.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(br.scratch[:4]), nil
}

// ReadInt64 reads a single int64.
func (br *BinaryIndexReader) ReadInt64() (int64, error) {
	if _, err := io.ReadFull(br.r, br.scratch[:8]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(br.scratch[:8])), nil
}

// ReadFloat32Slice reads count float32 values.
func (br *BinaryIndexReader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	if err := br.ReadFloat32SliceInto(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadFloat32SliceInto fills vec from the reader.
func (br *BinaryIndexReader) ReadFloat32SliceInto(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return err
	}
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

// SaveToFile atomically replaces filename with the bytes produced by writeFunc.
//
// Data is written to a temp file in the same directory, fsync'd and renamed over
// the target. On any error the target is left untouched and the temp file is
// removed.
func SaveToFile(fsys fs.FileSystem, filename string, writeFunc func(io.Writer) error) error {
	if fsys == nil {
		fsys = fs.Default
	}
	dir := filepath.Dir(filename)
	tmpName := filename + ".tmp-" + uuid.NewString()

	tmp, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if tmpName != "" {
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, ioBufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fsys.Rename(tmpName, filename); err != nil {
		return err
	}
	fs.SyncDir(fsys, dir)

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(fsys fs.FileSystem, filename string, readFunc func(io.Reader) error) error {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(filename, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, ioBufferSize))
}
