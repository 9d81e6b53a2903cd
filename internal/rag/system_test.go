package rag

import (
	"context"
	"sync"

	"github.com/koopa0/localrag/internal/config"
	"github.com/koopa0/localrag/internal/log"
	"github.com/koopa0/localrag/internal/vectorstore"
)

// fakeStore is an in-memory Store recording call counts for the
// idempotence assertions.
type fakeStore struct {
	mu      sync.Mutex
	chunks  map[string][]vectorstore.VectorChunk
	watched map[string]vectorstore.WatchedPath
	deletes int
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:  make(map[string][]vectorstore.VectorChunk),
		watched: make(map[string]vectorstore.WatchedPath),
	}
}

func (f *fakeStore) InsertChunks(_ context.Context, chunks []vectorstore.VectorChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	for _, ch := range chunks {
		f.chunks[ch.FilePath] = append(f.chunks[ch.FilePath], ch)
	}
	return nil
}

func (f *fakeStore) DeleteChunks(_ context.Context, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.chunks, filePath)
	return nil
}

func (f *fakeStore) Search(context.Context, []float32, string, int, vectorstore.SearchFilters) ([]vectorstore.QueryResult, error) {
	return nil, nil
}

func (f *fakeStore) ListFiles(context.Context, vectorstore.ListOptions) ([]vectorstore.ListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []vectorstore.ListItem
	for path, chunks := range f.chunks {
		items = append(items, vectorstore.ListItem{FilePath: path, ChunkCount: len(chunks)})
	}
	return items, nil
}

func (f *fakeStore) GetChunksByPath(_ context.Context, filePath string) ([]vectorstore.VectorChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[filePath], nil
}

func (f *fakeStore) GetStatus(context.Context) (vectorstore.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, chunks := range f.chunks {
		total += len(chunks)
	}
	return vectorstore.Status{
		Documents:    len(f.chunks),
		Chunks:       total,
		WatchedPaths: len(f.watched),
	}, nil
}

func (f *fakeStore) CleanupExpired(context.Context) (int, error) { return 0, nil }
func (f *fakeStore) Optimize(context.Context) error              { return nil }

func (f *fakeStore) AddWatchedPath(_ context.Context, wp vectorstore.WatchedPath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched[wp.Path] = wp
	return nil
}

func (f *fakeStore) RemoveWatchedPath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watched, path)
	return nil
}

func (f *fakeStore) ListWatchedPaths(context.Context) ([]vectorstore.WatchedPath, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vectorstore.WatchedPath
	for _, wp := range f.watched {
		out = append(out, wp)
	}
	return out, nil
}

func (f *fakeStore) Close() {}

func (f *fakeStore) counts() (deletes, inserts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes, f.inserts
}

// fakeEmbedder returns fixed-size vectors and counts embedding calls.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSystem() (*System, *fakeStore, *fakeEmbedder) {
	store := newFakeStore()
	emb := &fakeEmbedder{}
	sys := newSystem(config.Default(), store, emb, NewTextParser(), log.NewNop())
	return sys, store, emb
}
