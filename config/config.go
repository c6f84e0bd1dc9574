// Package config loads and hot-reloads the server's YAML configuration
// file: a small typed settings struct plus a filesystem watcher (see
// Watcher) that reports hot-swappable changes to registered callbacks.
// Nothing in this package applies a reported change.
package config

import (
	"os"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// Config holds the engine's recognized options plus the bind address
// and namespace default every server binary needs.
type Config struct {
	StoragePath         string `yaml:"storage_path"`
	BindAddress         string `yaml:"bind_address"`
	ReconcileIntervalMs uint64 `yaml:"reconcile_interval_ms"`
	MemoryThreshold     int    `yaml:"memory_threshold"`
	VectorDimension     int    `yaml:"vector_dimension"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
	DefaultNamespace    string `yaml:"default_namespace"`

	// MaxContentSize/MaxMessageSize accept human-readable sizes ("10MiB")
	// in the YAML source; ParsedMaxContentSize/ParsedMaxMessageSize hold
	// the resolved byte counts after Load.
	MaxContentSize string `yaml:"max_content_size"`
	MaxMessageSize string `yaml:"max_message_size"`

	ParsedMaxContentSize int64 `yaml:"-"`
	ParsedMaxMessageSize int64 `yaml:"-"`

	// Embedding controls the learning pipeline's HTTP embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Mirror optionally replicates every flush to a best-effort S3
	// target alongside the load-bearing local file backend.
	Mirror MirrorConfig `yaml:"mirror"`

	// Audit optionally mirrors applied write-log entries to one or more
	// relational sinks for operator visibility.
	Audit AuditConfig `yaml:"audit"`
}

// MirrorConfig configures the optional S3 mirror backend; Enabled
// false (the default) means every namespace persists to disk only.
type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// AuditConfig configures the relational audit mirrors a namespace's
// reconciler reports applied entries to.
type AuditConfig struct {
	Postgres AuditSinkConfig `yaml:"postgres"`
	MySQL    AuditSinkConfig `yaml:"mysql"`
}

// AuditSinkConfig is one relational sink's connection details.
type AuditSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
}

// EmbeddingConfig configures the pipeline's HTTP embedding client.
type EmbeddingConfig struct {
	URL            string `yaml:"url"`
	DefaultModel   string `yaml:"default_model"`
	TimeoutSeconds uint64 `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryDelayMs   uint64 `yaml:"retry_delay_ms"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (e EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Default returns the documented production defaults.
func Default() Config {
	return Config{
		StoragePath:         "./data",
		BindAddress:         "127.0.0.1:7420",
		ReconcileIntervalMs: 10,
		MemoryThreshold:     50000,
		VectorDimension:     768,
		MaxBatchSize:        10000,
		DefaultNamespace:    "default",
		MaxContentSize:      "10MiB",
		MaxMessageSize:      "100MiB",
		Embedding: EmbeddingConfig{
			URL:            "http://127.0.0.1:11434",
			DefaultModel:   "granite-embedding:30m",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RetryDelayMs:   500,
		},
	}
}

// Load reads and parses a YAML config file at path, filling any unset
// field from Default and resolving the human-readable size fields.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, sterr.Wrap(sterr.IoError, "config: failed to read file", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, sterr.Wrap(sterr.ProtocolError, "config: failed to parse yaml", err)
	}
	if err := cfg.resolveSizes(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) resolveSizes() error {
	contentBytes, err := units.RAMInBytes(c.MaxContentSize)
	if err != nil {
		return sterr.Wrap(sterr.InvalidArgument, "config: invalid max_content_size", err)
	}
	c.ParsedMaxContentSize = contentBytes

	messageBytes, err := units.RAMInBytes(c.MaxMessageSize)
	if err != nil {
		return sterr.Wrap(sterr.InvalidArgument, "config: invalid max_message_size", err)
	}
	c.ParsedMaxMessageSize = messageBytes
	return nil
}

// Validate rejects configurations that would make the engine
// unreachable or mis-dimensioned before it ever starts.
func (c Config) Validate() error {
	if c.StoragePath == "" {
		return sterr.New(sterr.InvalidArgument, "config: storage_path must not be empty")
	}
	if c.VectorDimension <= 0 {
		return sterr.New(sterr.InvalidArgument, "config: vector_dimension must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return sterr.New(sterr.InvalidArgument, "config: max_batch_size must be positive")
	}
	return nil
}

// Interval returns ReconcileIntervalMs as a time.Duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.ReconcileIntervalMs) * time.Millisecond
}
