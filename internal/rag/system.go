// Package rag is the orchestration layer of the engine: it wires the
// parser, chunker, embedding pipeline, and vector store into the public
// ingestion/query/watch surface.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/koopa0/localrag/internal/chunker"
	"github.com/koopa0/localrag/internal/config"
	"github.com/koopa0/localrag/internal/embedder"
	"github.com/koopa0/localrag/internal/log"
	"github.com/koopa0/localrag/internal/vectorstore"
	"github.com/koopa0/localrag/internal/workerpool"
)

// Store is the persistence surface the orchestrator depends on. Implemented
// by *vectorstore.Store.
type Store interface {
	InsertChunks(ctx context.Context, chunks []vectorstore.VectorChunk) error
	DeleteChunks(ctx context.Context, filePath string) error
	Search(ctx context.Context, queryVector []float32, queryText string, limit int, filters vectorstore.SearchFilters) ([]vectorstore.QueryResult, error)
	ListFiles(ctx context.Context, opts vectorstore.ListOptions) ([]vectorstore.ListItem, error)
	GetChunksByPath(ctx context.Context, filePath string) ([]vectorstore.VectorChunk, error)
	GetStatus(ctx context.Context) (vectorstore.Status, error)
	CleanupExpired(ctx context.Context) (int, error)
	Optimize(ctx context.Context) error
	AddWatchedPath(ctx context.Context, wp vectorstore.WatchedPath) error
	RemoveWatchedPath(ctx context.Context, path string) error
	ListWatchedPaths(ctx context.Context) ([]vectorstore.WatchedPath, error)
	Close()
}

// Embedder turns text into vectors. Implemented by *embedder.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Status is a diagnostic snapshot combining store and pool state.
type Status struct {
	Documents    int
	Chunks       int
	WatchedPaths int
	FTSEnabled   bool
	Workers      workerpool.Stats
}

// System is the engine's public entry point. One instance owns one store
// connection and one worker pool; create it with New and release it with
// Shutdown.
//
// Concurrent calls for different document keys are safe. Callers must not
// ingest the same key concurrently; delete-then-insert is sequential within
// one call but not serialized across calls.
type System struct {
	cfg      *config.Config
	store    Store
	embedder Embedder
	chunker  *chunker.Chunker
	parser   DocumentParser
	pool     *workerpool.Pool
	watcher  *watcher
	jobs     *jobRunner
	logger   log.Logger
}

// New builds a fully wired System: it primes the embedding model before any
// worker exists, starts the worker pool, opens the store (migrating a stale
// schema), reattaches persisted watched paths, and starts periodic jobs.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*System, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	model := embedder.NewOllamaModel(cfg.ModelURL, cfg.ModelName, cfg.ModelDimension)

	// Prime once, before the pool exists, so workers never race to download
	// the model.
	if err := model.Prime(ctx); err != nil {
		return nil, fmt.Errorf("priming embedding model: %w", err)
	}

	pool := workerpool.New(workerpool.Config{
		MaxWorkers:  cfg.MaxWorkers,
		MinWorkers:  cfg.MinWorkers,
		IdleTimeout: cfg.IdleTimeout,
	}, model.Embed, logger.With("component", "workerpool"))

	store, err := vectorstore.Open(ctx, vectorstore.Config{
		DSN:       cfg.PostgresConnectionString(),
		Dimension: cfg.ModelDimension,
		Search: vectorstore.SearchConfig{
			VectorWeight:  cfg.VectorWeight,
			KeywordWeight: cfg.KeywordWeight,
			MaxDistance:   cfg.MaxDistance,
			GroupingMode:  cfg.GroupingMode,
		},
	}, logger.With("component", "vectorstore"))
	if err != nil {
		pool.Destroy()
		return nil, err
	}

	s := &System{
		cfg:      cfg,
		store:    store,
		embedder: embedder.New(pool, cfg.EmbedBatchSize, logger.With("component", "embedder")),
		chunker:  chunker.New(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkLength),
		parser:   NewTextParser(),
		pool:     pool,
		logger:   logger,
	}

	s.watcher, err = newWatcher(s, logger.With("component", "watcher"))
	if err != nil {
		s.Shutdown()
		return nil, err
	}
	if err := s.restoreWatches(ctx); err != nil {
		s.Shutdown()
		return nil, err
	}

	s.jobs = newJobRunner(s, cfg.CleanupInterval, cfg.OptimizeInterval, logger.With("component", "jobs"))
	s.jobs.start()

	logger.Info("engine ready",
		"model", cfg.ModelName, "dimension", cfg.ModelDimension)
	return s, nil
}

// newSystem wires a System from pre-built dependencies. Used by tests; New
// is the production path.
func newSystem(cfg *config.Config, store Store, emb Embedder, parser DocumentParser, logger log.Logger) *System {
	return &System{
		cfg:      cfg,
		store:    store,
		embedder: emb,
		chunker:  chunker.New(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkLength),
		parser:   parser,
		logger:   logger,
	}
}

// Query embeds the query text and runs hybrid retrieval.
func (s *System) Query(ctx context.Context, query string, limit int, filters vectorstore.SearchFilters) ([]vectorstore.QueryResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, vec, query, limit, filters)
}

// Delete removes a document by key. A bare label resolves to its memory
// document key.
func (s *System) Delete(ctx context.Context, key string) error {
	return s.store.DeleteChunks(ctx, resolveDocumentKey(key))
}

// List returns aggregated documents, newest first.
func (s *System) List(ctx context.Context, opts vectorstore.ListOptions) ([]vectorstore.ListItem, error) {
	return s.store.ListFiles(ctx, opts)
}

// GetStatus reports store counts and worker pool state.
func (s *System) GetStatus(ctx context.Context) (Status, error) {
	st, err := s.store.GetStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	out := Status{
		Documents:    st.Documents,
		Chunks:       st.Chunks,
		WatchedPaths: st.WatchedPaths,
		FTSEnabled:   st.FTSEnabled,
	}
	if s.pool != nil {
		out.Workers = s.pool.Stats()
	}
	return out, nil
}

// CleanupExpired sweeps expired documents immediately, outside the periodic
// schedule.
func (s *System) CleanupExpired(ctx context.Context) (int, error) {
	return s.store.CleanupExpired(ctx)
}

// Shutdown tears the engine down: periodic jobs first, then the watcher,
// then the worker pool, then the store, so nothing can schedule new work
// against a closed component. Safe to call on a partially constructed
// System.
func (s *System) Shutdown() {
	if s.jobs != nil {
		s.jobs.stop()
	}
	if s.watcher != nil {
		s.watcher.close()
	}
	if s.pool != nil {
		s.pool.Destroy()
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("engine stopped")
}

// resolveDocumentKey maps a bare memory label to its synthetic key; real
// paths and already-qualified keys pass through.
func resolveDocumentKey(key string) string {
	if strings.Contains(key, "://") || strings.ContainsAny(key, "/\\") {
		return key
	}
	if labelPattern.MatchString(key) {
		return memoryKeyPrefix + key
	}
	return key
}
