package vectorstore

import (
	"context"
	"sort"
	"time"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// Manager covers the administrative side of the store: aggregating chunks
// into logical documents, sweeping expired documents, and fetching a
// document's chunks for in-place updates.
type Manager struct {
	db     querier
	logger log.Logger
}

func newManager(db querier, logger log.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// ListFiles groups chunks into documents. Filters apply at the database
// layer; grouping, sorting and pagination happen in memory over the
// aggregated list, not the raw rows. The most recently timestamped chunk's
// metadata represents each document.
func (m *Manager) ListFiles(ctx context.Context, opts ListOptions) ([]ListItem, error) {
	where, args := buildFilterClause(opts.Filters, 1)
	sql := `SELECT file_path, inserted_at,
	file_name, file_size, file_type, language, tags, project,
	memory_type, source_url, author, created_at, updated_at,
	expires_at, file_created_at, file_modified_at
	FROM chunks` + where

	rows, err := m.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Database("list files", err)
	}

	groups := make(map[string]*ListItem)
	for rows.Next() {
		var (
			path string
			ts   time.Time
			md   Metadata
		)
		if err := rows.Scan(&path, &ts,
			&md.FileName, &md.FileSize, &md.FileType, &md.Language, &md.Tags, &md.Project,
			&md.MemoryType, &md.SourceURL, &md.Author, &md.CreatedAt, &md.UpdatedAt,
			&md.ExpiresAt, &md.FileCreatedAt, &md.FileModifiedAt,
		); err != nil {
			rows.Close()
			return nil, errs.Database("scan chunk row", err)
		}

		item, ok := groups[path]
		if !ok {
			item = &ListItem{FilePath: path}
			groups[path] = item
		}
		item.ChunkCount++
		if !ok || ts.After(item.Timestamp) {
			item.Timestamp = ts
			item.Metadata = md
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Database("list files", err)
	}

	items := make([]ListItem, 0, len(groups))
	for _, item := range groups {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].FilePath < items[j].FilePath
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []ListItem{}, nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

// CleanupExpired deletes every document whose expiry has passed and returns
// the number of distinct documents removed. Only rows declaring an expiry
// are fetched; the comparison against now happens here, not in SQL, so the
// sweep and the store share one clock.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	rows, err := m.db.Query(ctx,
		`SELECT file_path, min(expires_at) FROM chunks
		WHERE expires_at IS NOT NULL GROUP BY file_path`)
	if err != nil {
		return 0, errs.Database("fetch expiry candidates", err)
	}

	now := time.Now()
	var expired []string
	for rows.Next() {
		var (
			path      string
			expiresAt time.Time
		)
		if err := rows.Scan(&path, &expiresAt); err != nil {
			rows.Close()
			return 0, errs.Database("scan expiry candidate", err)
		}
		if expiresAt.Before(now) {
			expired = append(expired, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errs.Database("fetch expiry candidates", err)
	}

	for _, path := range expired {
		if _, err := m.db.Exec(ctx, `DELETE FROM chunks WHERE file_path = $1`, path); err != nil {
			return 0, errs.Database("delete expired document", err)
		}
		m.logger.Info("expired document removed", "file_path", path)
	}
	return len(expired), nil
}

// GetChunksByPath returns a document's chunks ordered by chunk index.
func (m *Manager) GetChunksByPath(ctx context.Context, filePath string) ([]VectorChunk, error) {
	rows, err := m.db.Query(ctx,
		`SELECT `+chunkCols+` FROM chunks WHERE file_path = $1 ORDER BY chunk_index`, filePath)
	if err != nil {
		return nil, errs.Database("get chunks by path", err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, errs.Database("get chunks by path", err)
	}
	return chunks, nil
}
