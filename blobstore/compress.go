package blobstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm used by Compressed.
type Compression uint8

const (
	// CompressionNone stores blobs as-is (still framed).
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses Zstandard (better ratio).
	CompressionZSTD Compression = 2
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" and "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("blobstore: unknown compression %q", s)
	}
}

// ErrCorruptBlob is returned when a compressed blob cannot be decoded.
var ErrCorruptBlob = errors.New("blobstore: corrupt compressed blob")

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Frame layout: [Algorithm u8][UncompressedSize u32][CompressedSize u32][Data...]
// A CompressedSize of 0 means the data is stored raw.
const frameHeaderSize = 9

// Compressed wraps a Store and compresses every blob on Put.
type Compressed struct {
	inner Store
	alg   Compression
}

// NewCompressed returns a Store that frames and compresses blobs written to inner.
func NewCompressed(inner Store, alg Compression) *Compressed {
	return &Compressed{inner: inner, alg: alg}
}

// Put compresses data and stores the frame.
func (c *Compressed) Put(ctx context.Context, name string, data []byte) error {
	frame, err := compressFrame(data, c.alg)
	if err != nil {
		return err
	}
	return c.inner.Put(ctx, name, frame)
}

// Get fetches and decompresses a blob.
func (c *Compressed) Get(ctx context.Context, name string) ([]byte, error) {
	frame, err := c.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return decompressFrame(frame)
}

// Delete removes a blob.
func (c *Compressed) Delete(ctx context.Context, name string) error {
	return c.inner.Delete(ctx, name)
}

// List lists blobs of the wrapped store.
func (c *Compressed) List(ctx context.Context, prefix string) ([]string, error) {
	return c.inner.List(ctx, prefix)
}

func compressFrame(data []byte, alg Compression) ([]byte, error) {
	var compressed []byte
	switch alg {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("blobstore: unknown compression %d", alg)
	}

	// If compression doesn't help, store raw
	if len(compressed) == 0 || len(compressed) >= len(data) {
		frame := make([]byte, frameHeaderSize+len(data))
		frame[0] = byte(alg)
		binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
		copy(frame[frameHeaderSize:], data)
		return frame, nil
	}

	frame := make([]byte, frameHeaderSize+len(compressed))
	frame[0] = byte(alg)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[5:], uint32(len(compressed)))
	copy(frame[frameHeaderSize:], compressed)
	return frame, nil
}

func decompressFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame too small", ErrCorruptBlob)
	}
	alg := Compression(frame[0])
	size := binary.LittleEndian.Uint32(frame[1:])
	csize := binary.LittleEndian.Uint32(frame[5:])
	body := frame[frameHeaderSize:]

	if csize == 0 {
		if uint64(len(body)) != uint64(size) {
			return nil, fmt.Errorf("%w: raw size mismatch", ErrCorruptBlob)
		}
		out := make([]byte, size)
		copy(out, body)
		return out, nil
	}
	if uint64(len(body)) != uint64(csize) {
		return nil, fmt.Errorf("%w: compressed size mismatch", ErrCorruptBlob)
	}

	out := make([]byte, size)
	switch alg {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlob)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlob)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrCorruptBlob, alg)
	}
}
