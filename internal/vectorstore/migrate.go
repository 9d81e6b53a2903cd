package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// migrator detects a stale chunk-table schema at startup and rebuilds the
// table from its own rows.
//
// Detection compares the live column set against requiredColumns; any missing
// column marks the schema as stale. Migration reads every row as JSON,
// normalizes it into the current shape (defaults for missing fields, legacy
// comma-joined tag strings become arrays), drops the old table, recreates it,
// and reinserts the normalized rows.
//
// A legacy table with zero rows is dropped and reported as "table absent" —
// the same as first-time startup, and logged distinctly so an empty legacy
// table is never mistaken for a migration that lost data. Any other failure
// is fatal and surfaces to the caller.
type migrator struct {
	pool      *pgxpool.Pool
	dimension int
	logger    log.Logger
}

func newMigrator(pool *pgxpool.Pool, dimension int, logger log.Logger) *migrator {
	return &migrator{pool: pool, dimension: dimension, logger: logger.With("component", "migrator")}
}

// Run migrates if needed. It reports whether a populated, current table
// exists afterwards; false means the table is absent and will be created
// fresh by the store.
func (m *migrator) Run(ctx context.Context) (bool, error) {
	var reg *string
	if err := m.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, chunkTable).Scan(&reg); err != nil {
		return false, errs.Database("inspect table", err)
	}
	if reg == nil {
		return false, nil
	}

	existing, err := m.liveColumns(ctx)
	if err != nil {
		return false, err
	}

	var missing []string
	for _, col := range requiredColumns {
		if !existing[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}

	m.logger.Info("stale schema detected, migrating", "missing_columns", missing)
	return m.migrate(ctx)
}

func (m *migrator) liveColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = $1 AND table_schema = current_schema()`, chunkTable)
	if err != nil {
		return nil, errs.Database("inspect columns", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Database("scan column name", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (m *migrator) migrate(ctx context.Context) (bool, error) {
	rows, err := m.pool.Query(ctx, fmt.Sprintf(`SELECT row_to_json(t)::text FROM %s t`, chunkTable))
	if err != nil {
		return false, errs.Database("read legacy rows", err)
	}

	var chunks []VectorChunk
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return false, errs.Database("scan legacy row", err)
		}
		ch, err := normalizeLegacyRow(raw, m.dimension)
		if err != nil {
			rows.Close()
			return false, fmt.Errorf("normalizing legacy row: %w", err)
		}
		chunks = append(chunks, ch)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, errs.Database("read legacy rows", err)
	}

	if _, err := m.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE %s`, chunkTable)); err != nil {
		return false, errs.Database("drop legacy table", err)
	}

	if len(chunks) == 0 {
		// Distinguished outcome: the legacy table held nothing, so there is
		// nothing to carry over and startup proceeds as first-time creation.
		m.logger.Info("legacy table empty, recreating on first insert")
		return false, nil
	}

	if _, err := m.pool.Exec(ctx, createTableSQL(m.dimension)); err != nil {
		return false, errs.Database("recreate table", err)
	}

	inserted, err := m.reinsert(ctx, chunks)
	if err != nil {
		return false, err
	}

	m.logger.Info("schema migration complete", "rows", inserted)
	return true, nil
}

func (m *migrator) reinsert(ctx context.Context, chunks []VectorChunk) (int, error) {
	insertSQL := `INSERT INTO chunks (` + chunkCols + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		meta := ch.Metadata
		batch.Queue(insertSQL,
			ch.ID, ch.FilePath, ch.ChunkIndex, ch.Text, pgvector.NewVector(ch.Vector),
			meta.FileName, meta.FileSize, meta.FileType, meta.Language, meta.Tags,
			meta.Project, meta.MemoryType, meta.SourceURL, meta.Author,
			meta.CreatedAt, meta.UpdatedAt, meta.ExpiresAt,
			meta.FileCreatedAt, meta.FileModifiedAt, ch.Timestamp)
	}
	if err := m.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, errs.Database("reinsert rows", err)
	}
	return len(chunks), nil
}

// normalizeLegacyRow coerces a legacy row, read as JSON, into the current
// chunk shape. Missing fields take defaults; legacy tag encodings (a single
// comma-joined string) become arrays.
func normalizeLegacyRow(raw string, dimension int) (VectorChunk, error) {
	var row map[string]any
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return VectorChunk{}, fmt.Errorf("decoding row: %w", err)
	}

	now := time.Now()
	ch := VectorChunk{
		ID:         jsonString(row, "id"),
		FilePath:   jsonString(row, "file_path"),
		ChunkIndex: int(jsonFloat(row, "chunk_index")),
		Text:       jsonString(row, "content"),
		Timestamp:  jsonTime(row, "inserted_at", now),
	}
	if ch.ID == "" {
		return VectorChunk{}, fmt.Errorf("legacy row has no id")
	}

	vec, err := parseVectorText(jsonString(row, "embedding"), dimension)
	if err != nil {
		return VectorChunk{}, fmt.Errorf("row %s: %w", ch.ID, err)
	}
	ch.Vector = vec

	memoryType := jsonString(row, "memory_type")
	if memoryType == "" {
		memoryType = MemoryTypeFile
	}
	ch.Metadata = Metadata{
		FileName:       jsonString(row, "file_name"),
		FileSize:       int64(jsonFloat(row, "file_size")),
		FileType:       jsonString(row, "file_type"),
		Language:       jsonString(row, "language"),
		Tags:           jsonTags(row["tags"]),
		Project:        jsonString(row, "project"),
		MemoryType:     memoryType,
		SourceURL:      jsonString(row, "source_url"),
		Author:         jsonString(row, "author"),
		CreatedAt:      jsonTime(row, "created_at", now),
		UpdatedAt:      jsonTime(row, "updated_at", now),
		ExpiresAt:      jsonTimePtr(row, "expires_at"),
		FileCreatedAt:  jsonTimePtr(row, "file_created_at"),
		FileModifiedAt: jsonTimePtr(row, "file_modified_at"),
	}
	return ch, nil
}

func jsonString(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func jsonFloat(row map[string]any, key string) float64 {
	if v, ok := row[key].(float64); ok {
		return v
	}
	return 0
}

func jsonTime(row map[string]any, key string, fallback time.Time) time.Time {
	if t := jsonTimePtr(row, key); t != nil {
		return *t
	}
	return fallback
}

func jsonTimePtr(row map[string]any, key string) *time.Time {
	s, ok := row[key].(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// jsonTags accepts the current array encoding and the legacy comma-joined
// string encoding.
func jsonTags(v any) []string {
	switch tags := v.(type) {
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if tags == "" {
			return []string{}
		}
		parts := strings.Split(tags, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{}
	}
}

// parseVectorText parses pgvector's text form "[0.1,0.2,...]". A missing or
// wrong-length embedding is zero-filled so migration never invents data but
// also never drops a row over a malformed vector.
func parseVectorText(s string, dimension int) ([]float32, error) {
	out := make([]float32, dimension)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	parts := strings.Split(s, ",")
	if len(parts) != dimension {
		return out, nil
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
