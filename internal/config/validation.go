package config

import (
	"fmt"
	"math"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for internal consistency.
// Returns the first violation wrapped around its sentinel error.
func (c *Config) Validate() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d not in [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.ModelURL == "" {
		return fmt.Errorf("%w: model_url must not be empty", ErrInvalidModelURL)
	}
	if c.ModelDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, c.ModelDimension)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.EmbedBatchSize)
	}

	if c.MaxWorkers < 0 || c.MinWorkers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalidWorkerBounds)
	}
	if c.MaxWorkers > 0 && c.MinWorkers > c.MaxWorkers {
		return fmt.Errorf("%w: min_workers %d > max_workers %d",
			ErrInvalidWorkerBounds, c.MinWorkers, c.MaxWorkers)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidChunking)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)",
			ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.MinChunkLength < 0 {
		return fmt.Errorf("%w: min_chunk_length must not be negative", ErrInvalidChunking)
	}

	if c.VectorWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidSearchWeights)
	}
	if math.Abs(c.VectorWeight+c.KeywordWeight-1.0) > 1e-9 {
		return fmt.Errorf("%w: vector_weight %.3f + keyword_weight %.3f must equal 1",
			ErrInvalidSearchWeights, c.VectorWeight, c.KeywordWeight)
	}

	switch c.GroupingMode {
	case GroupingOff, GroupingSimilar, GroupingRelated:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidGroupingMode, c.GroupingMode)
	}

	return nil
}
