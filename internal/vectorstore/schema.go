package vectorstore

import "fmt"

// chunkTable is the single logical collection this engine manages.
const chunkTable = "chunks"

// chunkCols is the standard SELECT column list for scanChunks.
const chunkCols = `id, file_path, chunk_index, content, embedding,
	file_name, file_size, file_type, language, tags, project, memory_type,
	source_url, author, created_at, updated_at, expires_at,
	file_created_at, file_modified_at, inserted_at`

// requiredColumns is the canonical column set. The migrator compares the live
// table against this list; any missing column marks the schema as stale.
var requiredColumns = []string{
	"id", "file_path", "chunk_index", "content", "embedding",
	"file_name", "file_size", "file_type", "language", "tags", "project",
	"memory_type", "source_url", "author", "created_at", "updated_at",
	"expires_at", "file_created_at", "file_modified_at", "inserted_at",
}

// createTableSQL renders the canonical schema for the configured vector
// dimension.
func createTableSQL(dimension int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id text PRIMARY KEY,
	file_path text NOT NULL,
	chunk_index integer NOT NULL,
	content text NOT NULL,
	embedding vector(%d) NOT NULL,
	file_name text NOT NULL DEFAULT '',
	file_size bigint NOT NULL DEFAULT 0,
	file_type text NOT NULL DEFAULT '',
	language text NOT NULL DEFAULT '',
	tags text[] NOT NULL DEFAULT '{}',
	project text NOT NULL DEFAULT '',
	memory_type text NOT NULL DEFAULT 'file',
	source_url text NOT NULL DEFAULT '',
	author text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	expires_at timestamptz,
	file_created_at timestamptz,
	file_modified_at timestamptz,
	inserted_at timestamptz NOT NULL DEFAULT now()
)`, chunkTable, dimension)
}

// Secondary indexes. The embedding index uses HNSW with cosine distance to
// match the retriever's <=> operator; the FTS index is best-effort (see
// Store.Open).
const (
	createPathIndexSQL = `CREATE INDEX IF NOT EXISTS chunks_file_path_idx
	ON chunks (file_path)`

	createVectorIndexSQL = `CREATE INDEX IF NOT EXISTS chunks_embedding_idx
	ON chunks USING hnsw (embedding vector_cosine_ops)`

	createFTSIndexSQL = `CREATE INDEX IF NOT EXISTS chunks_content_fts_idx
	ON chunks USING gin (to_tsvector('english', content))`
)

// createWatchedSQL holds the persisted watch configuration side table.
const createWatchedSQL = `CREATE TABLE IF NOT EXISTS watched_paths (
	path text PRIMARY KEY,
	kind text NOT NULL,
	recursive boolean NOT NULL DEFAULT false,
	added_at timestamptz NOT NULL DEFAULT now()
)`
