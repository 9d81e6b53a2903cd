// Package vectorstore persists document chunks and their embeddings in
// PostgreSQL with pgvector, and answers similarity queries with hybrid
// (vector + keyword) retrieval.
//
// Store is the façade: it owns the connection pool, runs the schema migrator
// at startup, creates the canonical table and indexes, and wires the
// Retriever and Manager to the resulting table. The full-text index is
// created best-effort; if creation fails the store degrades to vector-only
// search instead of failing startup.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config configures the store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Dimension is the embedding vector length; part of the table schema.
	Dimension int

	// Search tunes the retriever (see retriever.go).
	Search SearchConfig
}

// Store owns the database connection and exposes the persistence surface of
// the engine. Safe for concurrent use by multiple goroutines.
type Store struct {
	pool       *pgxpool.Pool
	dimension  int
	ftsEnabled bool
	retriever  *Retriever
	manager    *Manager
	logger     log.Logger
}

// Open connects, migrates a stale schema if one is found, creates the
// canonical table and indexes, and returns a ready Store.
func Open(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Dimension <= 0 {
		return nil, errs.Validation("dimension", "must be positive, got %d", cfg.Dimension)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Database("parse dsn", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Database("connect", err)
	}

	s := &Store{
		pool:      pool,
		dimension: cfg.Dimension,
		logger:    logger,
	}

	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		pool.Close()
		return nil, errs.Database("create extension", err)
	}

	migrator := newMigrator(pool, cfg.Dimension, logger)
	if _, err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL(cfg.Dimension)); err != nil {
		pool.Close()
		return nil, errs.Database("create table", err)
	}
	if _, err := pool.Exec(ctx, createWatchedSQL); err != nil {
		pool.Close()
		return nil, errs.Database("create watched_paths", err)
	}
	for _, stmt := range []string{createPathIndexSQL, createVectorIndexSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, errs.Database("create index", err)
		}
	}

	// Best-effort FTS index. Without it the store silently falls back to
	// vector-only search, which is degraded but not fatal.
	s.ftsEnabled = true
	if _, err := pool.Exec(ctx, createFTSIndexSQL); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P07" { // duplicate_table: index exists
			s.logger.Debug("full-text index already exists")
		} else {
			s.ftsEnabled = false
			s.logger.Warn("full-text index creation failed, keyword search disabled", "error", err)
		}
	}

	s.retriever = newRetriever(pool, cfg.Search, s.ftsEnabled, logger.With("component", "retriever"))
	s.manager = newManager(pool, logger.With("component", "manager"))

	s.logger.Info("vector store ready", "dimension", cfg.Dimension, "fts", s.ftsEnabled)
	return s, nil
}

// FTSEnabled reports whether keyword search is active.
func (s *Store) FTSEnabled() bool { return s.ftsEnabled }

// InsertChunks appends chunks. It never replaces rows; callers delete first
// when re-ingesting a document.
func (s *Store) InsertChunks(ctx context.Context, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i, ch := range chunks {
		if len(ch.Vector) != s.dimension {
			return errs.Embedding(fmt.Sprintf(
				"chunk %d has vector dimension %d, want %d", i, len(ch.Vector), s.dimension), nil)
		}
	}

	batch := &pgx.Batch{}
	insertSQL := `INSERT INTO chunks (` + chunkCols + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	for _, ch := range chunks {
		vec := pgvector.NewVector(ch.Vector)
		m := ch.Metadata
		batch.Queue(insertSQL,
			ch.ID, ch.FilePath, ch.ChunkIndex, ch.Text, vec,
			m.FileName, m.FileSize, m.FileType, m.Language, m.Tags, m.Project,
			m.MemoryType, m.SourceURL, m.Author, m.CreatedAt, m.UpdatedAt,
			m.ExpiresAt, m.FileCreatedAt, m.FileModifiedAt, ch.Timestamp)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errs.Database("insert chunks", err)
	}

	s.logger.Debug("inserted chunks", "file_path", chunks[0].FilePath, "count", len(chunks))
	return nil
}

// DeleteChunks removes every chunk of the given document key. Used both for
// true deletes and for the delete-before-reinsert update pattern.
func (s *Store) DeleteChunks(ctx context.Context, filePath string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE file_path = $1`, filePath)
	if err != nil {
		return errs.Database("delete chunks", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug("deleted chunks", "file_path", filePath, "count", tag.RowsAffected())
	}
	return nil
}

// Search runs hybrid or vector-only retrieval; see Retriever.
func (s *Store) Search(ctx context.Context, queryVector []float32, queryText string, limit int, filters SearchFilters) ([]QueryResult, error) {
	return s.retriever.Search(ctx, queryVector, queryText, limit, filters)
}

// ListFiles aggregates chunks into logical documents; see Manager.
func (s *Store) ListFiles(ctx context.Context, opts ListOptions) ([]ListItem, error) {
	return s.manager.ListFiles(ctx, opts)
}

// GetChunksByPath returns a document's chunks ordered by chunk index.
func (s *Store) GetChunksByPath(ctx context.Context, filePath string) ([]VectorChunk, error) {
	return s.manager.GetChunksByPath(ctx, filePath)
}

// GetStatus reports document/chunk counts and the FTS state.
func (s *Store) GetStatus(ctx context.Context) (Status, error) {
	var st Status
	st.FTSEnabled = s.ftsEnabled

	row := s.pool.QueryRow(ctx, `SELECT count(DISTINCT file_path), count(*) FROM chunks`)
	if err := row.Scan(&st.Documents, &st.Chunks); err != nil {
		return Status{}, errs.Database("status", err)
	}
	row = s.pool.QueryRow(ctx, `SELECT count(*) FROM watched_paths`)
	if err := row.Scan(&st.WatchedPaths); err != nil {
		return Status{}, errs.Database("status", err)
	}
	return st, nil
}

// CleanupExpired removes expired documents and compacts if anything was
// deleted. Returns the number of distinct expired documents removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := s.manager.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := s.Optimize(ctx); err != nil {
			// Cleanup succeeded; compaction is advisory.
			s.logger.Warn("optimize after cleanup failed", "error", err)
		}
	}
	return removed, nil
}

// Optimize compacts the chunk table and rebuilds its indexes. Safe to call
// when the table does not exist.
func (s *Store) Optimize(ctx context.Context) error {
	var exists *string
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass('chunks')::text`).Scan(&exists); err != nil {
		return errs.Database("optimize", err)
	}
	if exists == nil {
		return nil
	}

	// VACUUM cannot run inside a transaction block; plain Exec is required.
	if _, err := s.pool.Exec(ctx, `VACUUM ANALYZE chunks`); err != nil {
		return errs.Database("vacuum", err)
	}
	if _, err := s.pool.Exec(ctx, `REINDEX TABLE chunks`); err != nil {
		return errs.Database("reindex", err)
	}

	s.logger.Debug("store optimized")
	return nil
}

// AddWatchedPath upserts watch configuration; idempotent by path.
func (s *Store) AddWatchedPath(ctx context.Context, wp WatchedPath) error {
	if wp.AddedAt.IsZero() {
		wp.AddedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO watched_paths (path, kind, recursive, added_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (path) DO UPDATE SET kind = $2, recursive = $3`,
		wp.Path, wp.Kind, wp.Recursive, wp.AddedAt)
	if err != nil {
		return errs.Database("add watched path", err)
	}
	return nil
}

// RemoveWatchedPath deletes persisted watch configuration for the path.
func (s *Store) RemoveWatchedPath(ctx context.Context, path string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM watched_paths WHERE path = $1`, path); err != nil {
		return errs.Database("remove watched path", err)
	}
	return nil
}

// ListWatchedPaths returns all persisted watch configuration.
func (s *Store) ListWatchedPaths(ctx context.Context) ([]WatchedPath, error) {
	rows, err := s.pool.Query(ctx, `SELECT path, kind, recursive, added_at FROM watched_paths ORDER BY added_at`)
	if err != nil {
		return nil, errs.Database("list watched paths", err)
	}
	defer rows.Close()

	var paths []WatchedPath
	for rows.Next() {
		var wp WatchedPath
		if err := rows.Scan(&wp.Path, &wp.Kind, &wp.Recursive, &wp.AddedAt); err != nil {
			return nil, errs.Database("scan watched path", err)
		}
		paths = append(paths, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("list watched paths", err)
	}
	return paths, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
	s.logger.Debug("vector store closed")
}

// scanChunks reads rows selected with chunkCols into VectorChunks.
func scanChunks(rows pgx.Rows) ([]VectorChunk, error) {
	defer rows.Close()

	var chunks []VectorChunk
	for rows.Next() {
		var (
			ch  VectorChunk
			m   Metadata
			vec pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.FilePath, &ch.ChunkIndex, &ch.Text, &vec,
			&m.FileName, &m.FileSize, &m.FileType, &m.Language, &m.Tags,
			&m.Project, &m.MemoryType, &m.SourceURL, &m.Author,
			&m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt,
			&m.FileCreatedAt, &m.FileModifiedAt, &ch.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		ch.Vector = vec.Slice()
		ch.Metadata = m
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}
