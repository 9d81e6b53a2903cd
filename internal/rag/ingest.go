package rag

import (
	"context"
	"io/fs"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/vectorstore"
)

const (
	memoryKeyPrefix = "memory://"
	urlKeyPrefix    = "url://"

	urlFetchTimeout = 30 * time.Second
)

var (
	// labelPattern restricts memory labels to word characters, dot and
	// hyphen; anything else would leak oddly into the synthetic key.
	labelPattern = regexp.MustCompile(`^[\w.-]+$`)

	// ttlPattern accepts durations like 30d, 12h, 1y.
	ttlPattern = regexp.MustCompile(`^(\d+)([dhy])$`)
)

// IngestOptions carries the caller-supplied metadata attached to every chunk
// of the ingested document.
type IngestOptions struct {
	Tags    []string
	Project string
	Author  string

	// TTL is an optional expiry like "30d", "12h" or "1y". Expiry is
	// computed now, at ingestion time, and only re-checked by the sweep.
	TTL string
}

// computeExpiry parses a TTL string against the current time.
func computeExpiry(ttl string, now time.Time) (*time.Time, error) {
	if ttl == "" {
		return nil, nil
	}
	m := ttlPattern.FindStringSubmatch(ttl)
	if m == nil {
		return nil, errs.Validation("ttl", "must match <number><d|h|y>, got %q", ttl)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, errs.Validation("ttl", "invalid number in %q", ttl)
	}

	var d time.Duration
	switch m[2] {
	case "h":
		d = time.Duration(n) * time.Hour
	case "d":
		d = time.Duration(n) * 24 * time.Hour
	case "y":
		d = time.Duration(n) * 365 * 24 * time.Hour
	}
	t := now.Add(d)
	return &t, nil
}

// IngestFile parses, chunks, embeds and stores one file. Re-ingesting a file
// whose modification time is unchanged is a no-op: no embedding, no
// delete/insert. A file that chunks to nothing has its existing chunks
// deleted and nothing reinserted.
func (s *System) IngestFile(ctx context.Context, path string, opts IngestOptions) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.FileOp("resolve", path, err)
	}

	stats, err := s.parser.ValidateAndStat(abs)
	if err != nil {
		return err
	}

	unchanged, err := s.isUnchanged(ctx, abs, stats.ModifiedAt)
	if err != nil {
		return err
	}
	if unchanged {
		s.logger.Debug("file unchanged, skipping", "path", abs)
		return nil
	}

	doc, err := s.parser.ParseFile(abs)
	if err != nil {
		return err
	}

	expiresAt, err := computeExpiry(opts.TTL, time.Now())
	if err != nil {
		return err
	}

	meta := vectorstore.Metadata{
		FileName:       filepath.Base(abs),
		FileSize:       doc.FileSize,
		FileType:       strings.TrimPrefix(filepath.Ext(abs), "."),
		Language:       doc.Language,
		Tags:           opts.Tags,
		Project:        opts.Project,
		MemoryType:     vectorstore.MemoryTypeFile,
		Author:         opts.Author,
		ExpiresAt:      expiresAt,
		FileCreatedAt:  &stats.CreatedAt,
		FileModifiedAt: &stats.ModifiedAt,
	}
	return s.replaceDocument(ctx, abs, doc.Text, meta)
}

// isUnchanged compares the file's modification time against the stored one.
func (s *System) isUnchanged(ctx context.Context, key string, modifiedAt time.Time) (bool, error) {
	existing, err := s.store.GetChunksByPath(ctx, key)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return false, nil
	}
	stored := existing[0].Metadata.FileModifiedAt
	return stored != nil && stored.Equal(modifiedAt), nil
}

// IngestFolder ingests every supported file under dir concurrently.
// Different files are independent document keys, so unconstrained fan-out
// is safe; embedding throughput is still bounded by the worker pool.
func (s *System) IngestFolder(ctx context.Context, dir string, opts IngestOptions) error {
	supported := make(map[string]bool)
	for _, ext := range s.parser.SupportedExtensions() {
		supported[ext] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supported[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return errs.FileOp("walk", dir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			return s.IngestFile(ctx, file, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("folder ingested", "dir", dir, "files", len(files))
	return nil
}

// IngestText stores a text snippet under a synthetic memory key. The label
// must match a restrictive identifier pattern.
func (s *System) IngestText(ctx context.Context, label, text string, opts IngestOptions) error {
	if !labelPattern.MatchString(label) {
		return errs.Validation("label", "must contain only word characters, dots and hyphens, got %q", label)
	}

	expiresAt, err := computeExpiry(opts.TTL, time.Now())
	if err != nil {
		return err
	}

	key := memoryKeyPrefix + label
	meta := vectorstore.Metadata{
		FileName:   label,
		FileSize:   int64(len(text)),
		FileType:   "text",
		Tags:       opts.Tags,
		Project:    opts.Project,
		MemoryType: vectorstore.MemoryTypeText,
		Author:     opts.Author,
		ExpiresAt:  expiresAt,
	}
	return s.replaceDocument(ctx, key, text, meta)
}

// IngestURL fetches a page, extracts its readable content, and stores it
// under a synthetic url key derived from the address.
func (s *System) IngestURL(ctx context.Context, pageURL string, opts IngestOptions) error {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return errs.Validation("url", "invalid URL %q", pageURL)
	}

	article, err := readability.FromURL(pageURL, urlFetchTimeout)
	if err != nil {
		return errs.FileOp("fetch", pageURL, err)
	}

	expiresAt, err := computeExpiry(opts.TTL, time.Now())
	if err != nil {
		return err
	}

	key := urlKeyPrefix + urlLabel(parsed)
	meta := vectorstore.Metadata{
		FileName:   article.Title,
		FileSize:   int64(len(article.TextContent)),
		FileType:   "url",
		Tags:       opts.Tags,
		Project:    opts.Project,
		MemoryType: vectorstore.MemoryTypeURL,
		SourceURL:  pageURL,
		Author:     article.Byline,
		ExpiresAt:  expiresAt,
	}
	return s.replaceDocument(ctx, key, article.TextContent, meta)
}

// urlLabel flattens host and path into a stable label so re-ingesting the
// same address replaces the same document.
func urlLabel(u *url.URL) string {
	label := u.Host + u.Path
	label = strings.Trim(label, "/")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, label)
}

// replaceDocument is the shared tail of every ingestion path: chunk, embed,
// then delete-old and insert-new sequentially for the key. Zero chunks means
// delete only.
func (s *System) replaceDocument(ctx context.Context, key, text string, meta vectorstore.Metadata) error {
	pieces := s.chunker.ChunkText(text)
	if len(pieces) == 0 {
		if err := s.store.DeleteChunks(ctx, key); err != nil {
			return err
		}
		s.logger.Debug("document chunked to nothing, removed", "key", key)
		return nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	chunks := make([]vectorstore.VectorChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = vectorstore.VectorChunk{
			ID:         uuid.NewString(),
			FilePath:   key,
			ChunkIndex: p.Index,
			Text:       p.Text,
			Vector:     vectors[i],
			Metadata:   meta,
			Timestamp:  now,
		}
	}

	if err := s.store.DeleteChunks(ctx, key); err != nil {
		return err
	}
	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		return err
	}

	s.logger.Info("document ingested", "key", key, "chunks", len(chunks))
	return nil
}
