// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (LOCALRAG_* and DATABASE_URL)
//  2. Config file (~/.localrag/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - Storage: PostgreSQL connection (see storage.go)
//   - Model: embedding service endpoint and batch sizing
//   - Pool: embedding worker pool sizing
//   - Chunking: chunk size, overlap, noise floor
//   - Search: hybrid weights, distance cutoff, grouping mode
//   - Jobs: periodic cleanup and optimize intervals
//
// Validation runs at load time (fail-fast) with sentinel errors usable via
// errors.Is; see validation.go.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown SSL mode.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidModelURL indicates the embedding service URL is empty.
	ErrInvalidModelURL = errors.New("invalid embedding service URL")

	// ErrInvalidDimension indicates a non-positive embedding dimension.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidBatchSize indicates a non-positive embedding batch size.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")

	// ErrInvalidWorkerBounds indicates inconsistent pool sizing.
	ErrInvalidWorkerBounds = errors.New("invalid worker pool bounds")

	// ErrInvalidChunking indicates inconsistent chunk size/overlap values.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidSearchWeights indicates hybrid weights that do not sum to 1.
	ErrInvalidSearchWeights = errors.New("invalid hybrid search weights")

	// ErrInvalidGroupingMode indicates an unknown result grouping mode.
	ErrInvalidGroupingMode = errors.New("invalid grouping mode")
)

// Grouping modes for relevance-gap result grouping.
const (
	GroupingOff     = ""
	GroupingSimilar = "similar"
	GroupingRelated = "related"
)

// Config stores the engine configuration.
type Config struct {
	// Storage (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Embedding model service
	ModelURL       string `mapstructure:"model_url"`
	ModelName      string `mapstructure:"model_name"`
	ModelDimension int    `mapstructure:"model_dimension"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size"`

	// Worker pool. MaxWorkers 0 means "available parallelism minus one".
	MaxWorkers  int           `mapstructure:"max_workers"`
	MinWorkers  int           `mapstructure:"min_workers"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// Chunking
	ChunkSize      int `mapstructure:"chunk_size"`
	ChunkOverlap   int `mapstructure:"chunk_overlap"`
	MinChunkLength int `mapstructure:"min_chunk_length"`

	// Search
	VectorWeight  float64 `mapstructure:"vector_weight"`
	KeywordWeight float64 `mapstructure:"keyword_weight"`
	MaxDistance   float64 `mapstructure:"max_distance"` // 0 disables the cutoff
	GroupingMode  string  `mapstructure:"grouping_mode"`

	// Periodic jobs; <= 0 disables.
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	OptimizeInterval time.Duration `mapstructure:"optimize_interval"`
}

// Load loads configuration from defaults, config file, and environment.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".localrag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("LOCALRAG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL beats individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in defaults without touching the filesystem.
// Used by tests and embedded callers that configure programmatically.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of in-memory defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "localrag")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "localrag")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("model_url", "http://localhost:11434")
	v.SetDefault("model_name", "all-minilm")
	v.SetDefault("model_dimension", 384)
	v.SetDefault("embed_batch_size", 32)

	v.SetDefault("max_workers", 0) // resolved to parallelism-1 by the pool
	v.SetDefault("min_workers", 0)
	v.SetDefault("idle_timeout", 30*time.Minute)

	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 100)
	v.SetDefault("min_chunk_length", 50)

	v.SetDefault("vector_weight", 0.7)
	v.SetDefault("keyword_weight", 0.3)
	v.SetDefault("max_distance", 0.0)
	v.SetDefault("grouping_mode", GroupingOff)

	v.SetDefault("cleanup_interval", time.Duration(0))
	v.SetDefault("optimize_interval", time.Duration(0))
}
