package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koopa0/localrag/internal/errs"
)

// OllamaModel implements Model against the Ollama REST API.
type OllamaModel struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOllamaModel creates a client for the given endpoint and model name.
// dimension is the vector length the model is expected to produce; responses
// with a different length fail with an EmbeddingError.
func NewOllamaModel(baseURL, model string, dimension int) *OllamaModel {
	return &OllamaModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Dimension returns the configured vector length.
func (o *OllamaModel) Dimension() int { return o.dimension }

// Prime warms the model with a single throwaway embedding so the server loads
// (or pulls) it once, before pool workers fan out and race on a cold cache.
func (o *OllamaModel) Prime(ctx context.Context) error {
	if _, err := o.Embed(ctx, []string{"warmup"}); err != nil {
		return errs.Embedding("priming model "+o.model, err)
	}
	return nil
}

// Embed returns one vector per input text via POST /api/embed.
func (o *OllamaModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": o.model,
		"input": texts,
	}

	body, err := o.post(ctx, "/api/embed", payload)
	if err != nil {
		return nil, errs.Embedding("ollama embed", err)
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Embedding("ollama embed decode", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errs.Embedding(fmt.Sprintf(
			"got %d embeddings for %d inputs", len(resp.Embeddings), len(texts)), nil)
	}
	for i, vec := range resp.Embeddings {
		if len(vec) != o.dimension {
			return nil, errs.Embedding(fmt.Sprintf(
				"embedding %d has dimension %d, want %d", i, len(vec), o.dimension), nil)
		}
	}

	return resp.Embeddings, nil
}

func (o *OllamaModel) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
