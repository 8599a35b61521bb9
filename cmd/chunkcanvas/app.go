package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/chunkcanvas"
	"github.com/hupe1980/chunkcanvas/blobstore"
	minioblob "github.com/hupe1980/chunkcanvas/blobstore/minio"
	s3blob "github.com/hupe1980/chunkcanvas/blobstore/s3"
	"github.com/hupe1980/chunkcanvas/codec"
	"github.com/hupe1980/chunkcanvas/internal/config"
	"github.com/hupe1980/chunkcanvas/internal/observability"
)

// app holds everything a command needs, built from the configuration.
type app struct {
	cfg     *config.Config
	logger  *chunkcanvas.Logger
	metrics *observability.PrometheusCollector
	mirror  blobstore.Store
	journal blobstore.Journal
	store   *chunkcanvas.Store
}

func loadApp(ctx context.Context, flags *globalFlags, withMetrics bool) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "config warning: %s\n", w)
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	if cfg.MirrorEnabled() {
		a.mirror, a.journal, err = buildMirror(ctx, cfg.Mirror)
		if err != nil {
			return nil, fmt.Errorf("mirror: %w", err)
		}
	}

	if withMetrics && cfg.Metrics.Enabled {
		a.metrics = observability.NewPrometheusCollector()
	}

	opts, err := storeOptions(cfg.Store)
	if err != nil {
		return nil, err
	}
	opts = append(opts, chunkcanvas.WithLogger(logger))
	if a.metrics != nil {
		opts = append(opts, chunkcanvas.WithMetricsCollector(a.metrics))
	}
	if a.mirror != nil {
		opts = append(opts, chunkcanvas.WithMirror(a.mirror), chunkcanvas.WithJournal(a.journal))
	}

	a.store = chunkcanvas.New(opts...)
	return a, nil
}

func storeOptions(cfg config.StoreConfig) ([]chunkcanvas.Option, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("store.codec: %w", err)
	}
	return []chunkcanvas.Option{
		chunkcanvas.WithCodec(c),
		chunkcanvas.WithFileLocking(cfg.FileLocking),
		chunkcanvas.WithMaxPageSize(cfg.MaxPageSize),
	}, nil
}

func newLogger(cfg config.LogConfig) (*chunkcanvas.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return chunkcanvas.NewJSONLogger(level), nil
	case "text":
		return chunkcanvas.NewTextLogger(level), nil
	default:
		return nil, fmt.Errorf("invalid log.format %q", cfg.Format)
	}
}

// buildMirror creates the blob store selected by cfg.Kind together with the
// journal its commits are recorded in.
func buildMirror(ctx context.Context, cfg config.MirrorConfig) (blobstore.Store, blobstore.Journal, error) {
	alg, err := blobstore.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   blobstore.Store
		journal blobstore.Journal = blobstore.NewMemoryJournal()
	)

	switch cfg.Kind {
	case "local":
		store = blobstore.NewLocalStore(cfg.Dir)

	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, nil, err
		}
		ms := minioblob.NewStore(client, cfg.Bucket, cfg.Prefix)
		if err := ms.EnsureBucket(ctx, true); err != nil {
			return nil, nil, err
		}
		store = ms

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, nil, err
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		store = s3blob.NewStore(client, cfg.Bucket, cfg.Prefix)
		if cfg.JournalTable != "" {
			journal = s3blob.NewDDBJournal(dynamodb.NewFromConfig(awsCfg), cfg.JournalTable)
		}

	default:
		return nil, nil, fmt.Errorf("unsupported mirror kind %q", cfg.Kind)
	}

	if alg != blobstore.CompressionNone {
		store = blobstore.NewCompressed(store, alg)
	}
	return store, journal, nil
}
