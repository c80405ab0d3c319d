// Package config loads the YAML configuration of the tindex CLI and turns it
// into engine, storage and backup settings.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/backup"
	"github.com/hupe1980/tindex/blobstore"
	"github.com/hupe1980/tindex/blobstore/minio"
	"github.com/hupe1980/tindex/blobstore/s3"
	"github.com/hupe1980/tindex/codec"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/kv/badgerkv"
	"github.com/hupe1980/tindex/kv/memkv"
	"github.com/hupe1980/tindex/kv/sqlitekv"
	"gopkg.in/yaml.v3"
)

// SearchPaths are tried in order when Load is called without a path.
var SearchPaths = []string{"tindex.yaml", "configs/tindex.yaml"}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Backup  BackupConfig  `yaml:"backup"`
}

type StorageConfig struct {
	Backend        string        `yaml:"backend"` // memory | badger | sqlite
	Path           string        `yaml:"path"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
}

type IndexConfig struct {
	FloatTolerance        float64 `yaml:"float_tolerance"`
	ContainmentUnionLimit int     `yaml:"containment_union_limit"` // 0 = engine default
	CatalogTable          string  `yaml:"catalog_table"`
	Codec                 string  `yaml:"codec"` // json | go-json
}

type LoggingConfig struct {
	Format string `yaml:"format"` // text | json
	Level  string `yaml:"level"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

type BackupConfig struct {
	Store       string  `yaml:"store"` // local | s3 | minio
	Dir         string  `yaml:"dir"`
	Bucket      string  `yaml:"bucket"`
	Prefix      string  `yaml:"prefix"`
	Region      string  `yaml:"region"`
	CommitTable string  `yaml:"commit_table"` // DynamoDB table for CURRENT (s3 only)
	Endpoint    string  `yaml:"endpoint"`
	AccessKey   string  `yaml:"access_key"`
	SecretKey   string  `yaml:"secret_key"`
	Secure      bool    `yaml:"secure"`
	Compression string  `yaml:"compression"`
	RateLimit   float64 `yaml:"rate_limit"` // rows per second, 0 = unlimited
	Parallelism int     `yaml:"parallelism"`
	BatchSize   int     `yaml:"batch_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Backend:        "badger",
			Path:           "tindex_data",
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr:      ":9464",
			Namespace: "tindex",
		},
		Backup: BackupConfig{
			Store:       "local",
			Dir:         "tindex_backups",
			Compression: string(backup.CompressionZstd),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at path over the defaults. An empty path
// tries SearchPaths and falls back to the defaults when none exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range SearchPaths {
			data, err := os.ReadFile(p)
			if err == nil {
				return cfg, parse(cfg, data)
			}
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return cfg, parse(cfg, data)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	return cfg, parse(cfg, data)
}

func parse(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyDefaults(cfg)
	return cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "badger"
	}
	if cfg.Storage.GCDiscardRatio <= 0 || cfg.Storage.GCDiscardRatio >= 1 {
		cfg.Storage.GCDiscardRatio = 0.5
	}
	if cfg.Index.CatalogTable == "" {
		cfg.Index.CatalogTable = tindex.DefaultCatalogTable
	}
	if cfg.Index.Codec == "" {
		cfg.Index.Codec = codec.Default.Name()
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Backup.Store == "" {
		cfg.Backup.Store = "local"
	}
	if cfg.Backup.Parallelism <= 0 {
		cfg.Backup.Parallelism = 4
	}
	if cfg.Backup.BatchSize <= 0 {
		cfg.Backup.BatchSize = backup.DefaultBatchSize
	}
}

// Validate checks enumerated fields and required settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "memory", "sqlite":
	case "badger":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of memory, badger, sqlite", c.Storage.Backend))
	}
	if c.Index.FloatTolerance < 0 {
		errs = append(errs, errors.New("index.float_tolerance must not be negative"))
	}
	if _, err := codecByName(c.Index.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Logging.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", f))
	}
	if _, err := backup.ParseCompression(c.Backup.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Backup.RateLimit < 0 {
		errs = append(errs, errors.New("backup.rate_limit must not be negative"))
	}
	switch c.Backup.Store {
	case "local":
		if c.Backup.Dir == "" {
			errs = append(errs, errors.New("backup.dir is required for the local store"))
		}
	case "s3", "minio":
		if c.Backup.Bucket == "" {
			errs = append(errs, fmt.Errorf("backup.bucket is required for the %s store", c.Backup.Store))
		}
		if c.Backup.Store == "minio" && c.Backup.Endpoint == "" {
			errs = append(errs, errors.New("backup.endpoint is required for the minio store"))
		}
	default:
		errs = append(errs, fmt.Errorf("backup.store %q is not one of local, s3, minio", c.Backup.Store))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// OpenStore opens the configured kv backend. logger receives BadgerDB's
// internal logging and may be nil.
func (c StorageConfig) OpenStore(logger *slog.Logger) (kv.Store, error) {
	switch c.Backend {
	case "memory":
		return memkv.New(), nil
	case "sqlite":
		return sqlitekv.Open(sqlitekv.Config{Path: c.Path, SyncWrites: c.SyncWrites})
	case "badger":
		return badgerkv.Open(badgerkv.Config{
			Path:           c.Path,
			SyncWrites:     c.SyncWrites,
			Logger:         logger,
			GCInterval:     c.GCInterval,
			GCDiscardRatio: c.GCDiscardRatio,
		})
	}
	return nil, fmt.Errorf("config: unknown storage backend %q", c.Backend)
}

func (c LoggingConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}

// Logger builds the configured logger writing to w.
func (c LoggingConfig) Logger(w io.Writer) (*tindex.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return tindex.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return tindex.NewLogger(slog.NewTextHandler(w, opts)), nil
}

// Options returns the engine options of the index section.
func (c IndexConfig) Options() ([]tindex.Option, error) {
	cd, err := codecByName(c.Codec)
	if err != nil {
		return nil, err
	}
	return []tindex.Option{
		tindex.WithFloatTolerance(c.FloatTolerance),
		tindex.WithContainmentUnionLimit(c.ContainmentUnionLimit),
		tindex.WithCatalogTable(c.CatalogTable),
		tindex.WithCodec(cd),
	}, nil
}

// OpenStore opens the configured backup blob store.
func (c BackupConfig) OpenStore(ctx context.Context) (blobstore.Store, error) {
	switch c.Store {
	case "local":
		return blobstore.NewLocalStore(c.Dir), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(c.Prefix), s3.WithRegion(c.Region)}
		if c.CommitTable != "" {
			return s3.NewCommitStore(ctx, c.Bucket, c.CommitTable, opts...)
		}
		return s3.New(ctx, c.Bucket, opts...)
	case "minio":
		return minio.Dial(minio.Config{
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Secure:    c.Secure,
			Region:    c.Region,
			Bucket:    c.Bucket,
			Prefix:    c.Prefix,
		})
	}
	return nil, fmt.Errorf("config: unknown backup store %q", c.Store)
}

// Options returns the export and restore options of the backup section.
func (c BackupConfig) Options(logger *tindex.Logger) ([]backup.Option, error) {
	comp, err := backup.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	return []backup.Option{
		backup.WithCompression(comp),
		backup.WithParallelism(c.Parallelism),
		backup.WithBatchSize(c.BatchSize),
		backup.WithRateLimit(c.RateLimit, max(int(c.RateLimit), 1)),
		backup.WithLogger(logger),
	}, nil
}

func codecByName(name string) (codec.Codec, error) {
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("index.codec %q is not one of json, go-json", name)
	}
	return c, nil
}
