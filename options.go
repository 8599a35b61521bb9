package chunkcanvas

import (
	"log/slog"

	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/hupe1980/chunkcanvas/codec"
	"github.com/hupe1980/chunkcanvas/internal/fs"
)

const (
	// DefaultPageSize is the content page size used when none is given.
	DefaultPageSize = 50
	// MaxPageSize bounds a content page.
	MaxPageSize = 500
	// DefaultPreviewDim is the number of vector components previewed per record.
	DefaultPreviewDim = 8
	// MaxPreviewDim bounds the vector preview.
	MaxPreviewDim = 64
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	fsys             fs.FileSystem
	fileLocking      bool
	mirror           blobstore.Store
	journal          blobstore.Journal
	maxPageSize      int
}

// Option configures a Store.
type Option func(*options)

// WithCodec configures the codec used to read and write metadata sidecars.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &chunkcanvas.BasicMetricsCollector{}
//	store := chunkcanvas.New(chunkcanvas.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Upserts: %d, Avg latency: %dns\n", stats.UpsertCount, stats.UpsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := chunkcanvas.NewJSONLogger(slog.LevelInfo)
//	store := chunkcanvas.New(chunkcanvas.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem replaces the file system used for index and sidecar I/O.
// Tests use it to inject faults.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithFileLocking additionally guards every location with an advisory lock
// on "<index>.lock", serializing writers across processes.
func WithFileLocking(enabled bool) Option {
	return func(o *options) {
		o.fileLocking = enabled
	}
}

// WithMirror uploads both files of a location to store after every
// successful commit. Upload failures are logged and never fail the write.
func WithMirror(store blobstore.Store) Option {
	return func(o *options) {
		o.mirror = store
	}
}

// WithJournal records every mirrored commit in j. It has no effect without
// WithMirror.
func WithJournal(j blobstore.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithMaxPageSize lowers the upper bound of a content page. Values outside
// [1, MaxPageSize] are ignored.
func WithMaxPageSize(n int) Option {
	return func(o *options) {
		if n >= 1 && n <= MaxPageSize {
			o.maxPageSize = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fsys:             fs.Default,
		maxPageSize:      MaxPageSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
