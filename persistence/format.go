package persistence

import "errors"

const (
	// MagicNumber identifies chunkcanvas vector index files (ASCII: "CCVX").
	MagicNumber = 0x43435658
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// HeaderSize is the encoded size of FileHeader in bytes.
	HeaderSize = 64

	// MaxDimension bounds the dimension accepted when decoding a header.
	MaxDimension = 1 << 16
	// MaxVectorCount bounds the vector count accepted when decoding a header.
	MaxVectorCount = 100_000_000
)

// Metric codes stored in FileHeader.Metric.
const (
	MetricCodeCosine uint8 = 1
	MetricCodeL2     uint8 = 2
	MetricCodeIP     uint8 = 3
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidHeader  = errors.New("invalid header")
)

// FileHeader is the 64-byte header at the start of every index file.
type FileHeader struct {
	Magic       uint32 // 0x43435658 ("CCVX")
	Version     uint32 // File format version
	Metric      uint8  // 1=cosine, 2=l2, 3=ip
	Padding1    [3]byte
	VectorCount uint64 // Number of stored (id, vector) records
	Dimension   uint32 // Vector dimensionality
	Flags       uint32
	Reserved    [36]byte // Future use
}
