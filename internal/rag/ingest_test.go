package rag

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/vectorstore"
)

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		ttl     string
		want    time.Time
		wantErr bool
	}{
		{ttl: "", want: time.Time{}},
		{ttl: "12h", want: now.Add(12 * time.Hour)},
		{ttl: "30d", want: now.Add(30 * 24 * time.Hour)},
		{ttl: "1y", want: now.Add(365 * 24 * time.Hour)},
		{ttl: "30", wantErr: true},
		{ttl: "d30", wantErr: true},
		{ttl: "30m", wantErr: true},
		{ttl: "1.5d", wantErr: true},
		{ttl: "-3d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ttl, func(t *testing.T) {
			got, err := computeExpiry(tt.ttl, now)
			if tt.wantErr {
				var verr *errs.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("ttl %q: expected ValidationError, got %v", tt.ttl, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ttl %q: %v", tt.ttl, err)
			}
			if tt.ttl == "" {
				if got != nil {
					t.Fatalf("empty ttl should yield nil expiry, got %v", got)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ttl %q: expiry = %v, want %v", tt.ttl, got, tt.want)
			}
		})
	}
}

func TestIngestTextLabelValidation(t *testing.T) {
	sys, _, _ := testSystem()

	for _, label := range []string{"", "has space", "slash/y", "q?м:", "semi;colon"} {
		err := sys.IngestText(context.Background(), label, "content", IngestOptions{})
		var verr *errs.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("label %q: expected ValidationError, got %v", label, err)
		}
	}
}

func TestIngestTextStoresUnderMemoryKey(t *testing.T) {
	sys, store, _ := testSystem()
	ctx := context.Background()

	if err := sys.IngestText(ctx, "greeting-message", "Hello, world!", IngestOptions{
		Tags: []string{"greeting"},
	}); err != nil {
		t.Fatalf("IngestText: %v", err)
	}

	chunks, err := store.GetChunksByPath(ctx, "memory://greeting-message")
	if err != nil {
		t.Fatalf("GetChunksByPath: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.Text != "Hello, world!" {
		t.Errorf("chunk text = %q", ch.Text)
	}
	if ch.Metadata.MemoryType != "text" {
		t.Errorf("memory type = %q, want text", ch.Metadata.MemoryType)
	}

	deletes, inserts := store.counts()
	if deletes != 1 || inserts != 1 {
		t.Errorf("deletes/inserts = %d/%d, want 1/1", deletes, inserts)
	}
}

func TestIngestFileUnchangedSkipsEmbedding(t *testing.T) {
	sys, store, emb := testSystem()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("some note content for the engine"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := sys.IngestFile(ctx, path, IngestOptions{}); err != nil {
		t.Fatalf("first IngestFile: %v", err)
	}
	deletes, inserts := store.counts()
	if deletes != 1 || inserts != 1 {
		t.Fatalf("first ingest deletes/inserts = %d/%d, want 1/1", deletes, inserts)
	}
	callsAfterFirst := emb.callCount()

	// Unchanged file: no embedding, no delete, no insert.
	if err := sys.IngestFile(ctx, path, IngestOptions{}); err != nil {
		t.Fatalf("second IngestFile: %v", err)
	}
	if got := emb.callCount(); got != callsAfterFirst {
		t.Errorf("embedding calls changed on unchanged file: %d -> %d", callsAfterFirst, got)
	}
	deletes, inserts = store.counts()
	if deletes != 1 || inserts != 1 {
		t.Errorf("unchanged ingest deletes/inserts = %d/%d, want 1/1", deletes, inserts)
	}

	// Touch the file into the future: full re-ingestion.
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if err := sys.IngestFile(ctx, path, IngestOptions{}); err != nil {
		t.Fatalf("third IngestFile: %v", err)
	}
	deletes, inserts = store.counts()
	if deletes != 2 || inserts != 2 {
		t.Errorf("changed ingest deletes/inserts = %d/%d, want 2/2", deletes, inserts)
	}
}

func TestIngestFileEmptyDeletesOnly(t *testing.T) {
	sys, store, _ := testSystem()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("   \n  "), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := sys.IngestFile(ctx, path, IngestOptions{}); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	deletes, inserts := store.counts()
	if deletes != 1 || inserts != 0 {
		t.Errorf("deletes/inserts = %d/%d, want 1/0", deletes, inserts)
	}
}

func TestIngestFileUnsupportedType(t *testing.T) {
	sys, _, _ := testSystem()

	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50}, 0o600); err != nil {
		t.Fatal(err)
	}

	err := sys.IngestFile(context.Background(), path, IngestOptions{})
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestIngestFolder(t *testing.T) {
	sys, store, _ := testSystem()
	ctx := context.Background()

	dir := t.TempDir()
	files := map[string]string{
		"a.txt":        "first document content",
		"b.md":         "second document content",
		"sub/c.txt":    "third document content",
		"ignored.bin":  "not a supported format",
		"sub/skip.png": "also unsupported",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := sys.IngestFolder(ctx, dir, IngestOptions{}); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}

	items, err := store.ListFiles(ctx, vectorstore.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("ingested documents = %d, want 3 (unsupported files skipped)", len(items))
	}
}

func TestIngestWithTTL(t *testing.T) {
	sys, store, _ := testSystem()
	ctx := context.Background()

	before := time.Now()
	if err := sys.IngestText(ctx, "ephemeral", "short lived note", IngestOptions{TTL: "12h"}); err != nil {
		t.Fatalf("IngestText: %v", err)
	}

	chunks, _ := store.GetChunksByPath(ctx, "memory://ephemeral")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	expires := chunks[0].Metadata.ExpiresAt
	if expires == nil {
		t.Fatal("expected expiry to be set")
	}
	if expires.Before(before.Add(11*time.Hour)) || expires.After(before.Add(13*time.Hour)) {
		t.Errorf("expiry %v not ~12h from now", expires)
	}
}

func TestResolveDocumentKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"greeting", "memory://greeting"},
		{"memory://greeting", "memory://greeting"},
		{"url://example.com-page", "url://example.com-page"},
		{"/docs/a.txt", "/docs/a.txt"},
		{"has space", "has space"},
	}
	for _, tt := range tests {
		if got := resolveDocumentKey(tt.in); got != tt.want {
			t.Errorf("resolveDocumentKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestURLLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/blog/post-1", "example.com-blog-post-1"},
		{"https://example.com/", "example.com"},
		{"http://host.dev/a%20b", "host.dev-a-b"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := urlLabel(u); got != tt.want {
			t.Errorf("urlLabel(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
