package vectorstore

import "time"

// Memory types recorded on every chunk. They describe how the document
// entered the store.
const (
	MemoryTypeFile = "file"
	MemoryTypeText = "text"
	MemoryTypeURL  = "url"
)

// Metadata carries the descriptive attributes of a document. The metadata of
// a document's most recently written chunk is authoritative when aggregating.
type Metadata struct {
	FileName       string
	FileSize       int64
	FileType       string
	Language       string
	Tags           []string
	Project        string
	MemoryType     string
	SourceURL      string
	Author         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
	FileCreatedAt  *time.Time
	FileModifiedAt *time.Time
}

// VectorChunk is one stored piece of a document. All chunks sharing a
// FilePath form one logical document; ChunkIndex is unique and ordered within
// that group. Documents are replaced whole (delete-then-insert), never
// patched.
type VectorChunk struct {
	ID         string
	FilePath   string
	ChunkIndex int
	Text       string
	Vector     []float32
	Metadata   Metadata
	Timestamp  time.Time
}

// QueryResult is a transient, query-scoped view of a matching chunk.
// Score is a distance: lower is better.
type QueryResult struct {
	FilePath   string
	ChunkIndex int
	Text       string
	Score      float64
	Metadata   Metadata
}

// ListItem aggregates a document group. Computed on demand, never stored.
type ListItem struct {
	FilePath   string
	ChunkCount int
	Timestamp  time.Time
	Metadata   Metadata
}

// WatchedPath is persisted watch configuration, one row per watched root.
type WatchedPath struct {
	Path      string
	Kind      string // "file" or "folder"
	Recursive bool
	AddedAt   time.Time
}

// SearchFilters narrows a search or listing. All set fields must match;
// every listed tag must be present (AND semantics).
type SearchFilters struct {
	Type     string // matches Metadata.MemoryType
	Project  string
	FileName string
	Tags     []string
}

// ListOptions controls ListFiles. Pagination applies to the aggregated
// document list, not the underlying chunk rows.
type ListOptions struct {
	Filters SearchFilters
	Offset  int
	Limit   int
}

// Status is a snapshot of the store for diagnostics.
type Status struct {
	Documents    int
	Chunks       int
	WatchedPaths int
	FTSEnabled   bool
}
