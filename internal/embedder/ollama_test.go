package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koopa0/localrag/internal/errs"
)

func ollamaServer(t *testing.T, dimension int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = make([]float32, dimension)
			embeddings[i][0] = float32(i)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
}

func TestOllamaEmbed(t *testing.T) {
	srv := ollamaServer(t, 384)
	defer srv.Close()

	m := NewOllamaModel(srv.URL, "all-minilm", 384)
	vectors, err := m.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 384 {
		t.Errorf("got %d vectors of dim %d", len(vectors), len(vectors[0]))
	}
}

func TestOllamaDimensionMismatch(t *testing.T) {
	srv := ollamaServer(t, 128)
	defer srv.Close()

	m := NewOllamaModel(srv.URL, "all-minilm", 384)
	_, err := m.Embed(context.Background(), []string{"text"})

	var embErr *errs.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("dimension mismatch must be an EmbeddingError, got %v", err)
	}
}

func TestOllamaPrime(t *testing.T) {
	srv := ollamaServer(t, 384)
	defer srv.Close()

	m := NewOllamaModel(srv.URL, "all-minilm", 384)
	if err := m.Prime(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewOllamaModel(srv.URL, "missing", 384)
	_, err := m.Embed(context.Background(), []string{"text"})

	var embErr *errs.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("HTTP error must surface as EmbeddingError, got %v", err)
	}
}
