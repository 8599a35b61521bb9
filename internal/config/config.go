// Package config loads the chunkcanvas server configuration from an optional
// file and CHUNKCANVAS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "CHUNKCANVAS"

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit is the sustained request rate per second. Zero disables
	// rate limiting.
	RateLimit   float64  `mapstructure:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	MaxBodyMB   int      `mapstructure:"max_body_mb"`
}

// StoreConfig holds index store settings.
type StoreConfig struct {
	FileLocking bool   `mapstructure:"file_locking"`
	Codec       string `mapstructure:"codec"`
	MaxPageSize int    `mapstructure:"max_page_size"`
}

// MirrorConfig selects where committed pairs are copied to.
type MirrorConfig struct {
	// Kind is one of none, local, minio and s3.
	Kind        string `mapstructure:"kind"`
	Dir         string `mapstructure:"dir"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	Compression string `mapstructure:"compression"`
	// JournalTable names the DynamoDB table commits are journaled to. Empty
	// keeps an in-memory journal.
	JournalTable string `mapstructure:"journal_table"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Mirror.Kind = strings.ToLower(strings.TrimSpace(cfg.Mirror.Kind))
	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 64)

	v.SetDefault("store.file_locking", true)
	v.SetDefault("store.codec", "go-json")
	v.SetDefault("store.max_page_size", 500)

	v.SetDefault("mirror.kind", "none")
	v.SetDefault("mirror.dir", "")
	v.SetDefault("mirror.bucket", "")
	v.SetDefault("mirror.prefix", "")
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.region", "us-east-1")
	v.SetDefault("mirror.access_key", "")
	v.SetDefault("mirror.secret_key", "")
	v.SetDefault("mirror.use_ssl", true)
	v.SetDefault("mirror.compression", "none")
	v.SetDefault("mirror.journal_table", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "chunkcanvas")
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate returns human-readable warnings about the configuration. A
// non-empty result does not prevent startup.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Mirror.Kind {
	case "", "none":
	case "local":
		if c.Mirror.Dir == "" {
			warnings = append(warnings, "mirror.kind is local but mirror.dir is empty; mirroring disabled")
		}
	case "minio":
		if c.Mirror.Endpoint == "" || c.Mirror.Bucket == "" {
			warnings = append(warnings, "mirror.kind is minio but mirror.endpoint or mirror.bucket is empty; mirroring disabled")
		}
	case "s3":
		if c.Mirror.Bucket == "" {
			warnings = append(warnings, "mirror.kind is s3 but mirror.bucket is empty; mirroring disabled")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown mirror.kind %q; mirroring disabled", c.Mirror.Kind))
	}

	if c.Mirror.JournalTable != "" && c.Mirror.Kind != "s3" {
		warnings = append(warnings, "mirror.journal_table is only used with mirror.kind s3")
	}

	if c.Server.RateLimit < 0 {
		warnings = append(warnings, "server.rate_limit is negative; rate limiting disabled")
	}

	if c.Store.MaxPageSize < 1 || c.Store.MaxPageSize > 500 {
		warnings = append(warnings, fmt.Sprintf("store.max_page_size %d outside [1, 500]; using 500", c.Store.MaxPageSize))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, "tracing.sample_rate should be between 0 and 1")
	}

	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" && len(c.Server.CORSOrigins) > 1 {
			warnings = append(warnings, "server.cors_origins mixes * with explicit origins")
			break
		}
	}

	return warnings
}

// MirrorEnabled reports whether Kind selects a usable mirror.
func (c *Config) MirrorEnabled() bool {
	switch c.Mirror.Kind {
	case "local":
		return c.Mirror.Dir != ""
	case "minio":
		return c.Mirror.Endpoint != "" && c.Mirror.Bucket != ""
	case "s3":
		return c.Mirror.Bucket != ""
	default:
		return false
	}
}
