package persistence

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// Index files end in a CRC32 (IEEE) of every byte before the trailer. It
// catches torn and truncated writes and doubles as the fingerprint a staged
// sidecar records for recovery.

// ErrChecksumMismatch is matched by every *ChecksumMismatchError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// CalculateChecksum returns the CRC32 of data.
func CalculateChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumWriter forwards writes and sums the bytes the underlying writer
// accepted.
type ChecksumWriter struct {
	io.Writer
	h hash.Hash32
}

// NewChecksumWriter wraps w.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	h := crc32.NewIEEE()
	return &ChecksumWriter{Writer: w, h: h}
}

func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.h.Write(p[:n])
	return n, err
}

// Sum returns the checksum so far.
func (cw *ChecksumWriter) Sum() uint32 { return cw.h.Sum32() }

// ChecksumReader sums every byte read through it.
type ChecksumReader struct {
	io.Reader
	h hash.Hash32
}

// NewChecksumReader wraps r.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	h := crc32.NewIEEE()
	return &ChecksumReader{Reader: io.TeeReader(r, h), h: h}
}

// Sum returns the checksum so far.
func (cr *ChecksumReader) Sum() uint32 { return cr.h.Sum32() }

// Verify compares the checksum so far with the stored trailer value.
func (cr *ChecksumReader) Verify(stored uint32) error {
	if got := cr.Sum(); got != stored {
		return &ChecksumMismatchError{Stored: stored, Computed: got}
	}
	return nil
}

// ChecksumMismatchError reports a trailer that does not match the content.
type ChecksumMismatchError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: trailer 0x%08x, content 0x%08x", e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }
