// Package embedder turns text into vectors by batching work over the worker
// pool.
//
// The pool completes tasks in whatever order its workers finish; the embedder
// restores input order by tracking each sub-batch's position at submission
// time and reassembling results by that position, not by completion.
package embedder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// DefaultBatchSize is the number of texts submitted as one pool task.
const DefaultBatchSize = 32

// Model is the opaque embedding computation. Implementations must be safe for
// concurrent use — the pool calls Embed from multiple workers.
type Model interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Prime downloads/warms the model. Must be called once, before any
	// worker runs, so concurrent workers never race on a cold cache.
	Prime(ctx context.Context) error

	// Dimension is the fixed vector length the model produces.
	Dimension() int
}

// TaskRunner is the slice of the worker pool the embedder needs.
type TaskRunner interface {
	RunEmbed(ctx context.Context, text string) ([]float32, error)
	RunEmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder is a batching façade over the pool.
type Embedder struct {
	pool      TaskRunner
	batchSize int
	logger    log.Logger
}

// New creates an Embedder. batchSize <= 0 falls back to the default.
func New(pool TaskRunner, batchSize int, logger log.Logger) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Embedder{pool: pool, batchSize: batchSize, logger: logger}
}

// Embed embeds a single text. Empty or whitespace-only input is a validation
// error, never silently embedded.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.Validation("text", "must not be empty")
	}
	return e.pool.RunEmbed(ctx, text)
}

// EmbedBatch embeds texts, preserving input order in the returned vectors.
//
// The input is partitioned into fixed-size sub-batches; each sub-batch is one
// pool task and all sub-batches run concurrently. Results are placed by
// sub-batch submission index, which is what preserves order despite the
// pool's unordered completion.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, errs.Validation("texts", "element %d must not be empty", i)
		}
	}

	type subBatch struct {
		start int
		texts []string
	}
	var batches []subBatch
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, subBatch{start: start, texts: texts[start:end]})
	}

	vectors := make([][]float32, len(texts))
	errCh := make(chan error, len(batches))

	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(b subBatch) {
			defer wg.Done()
			out, err := e.pool.RunEmbedBatch(ctx, b.texts)
			if err != nil {
				errCh <- fmt.Errorf("sub-batch at %d: %w", b.start, err)
				return
			}
			if len(out) != len(b.texts) {
				errCh <- errs.Embedding(fmt.Sprintf(
					"sub-batch at %d: got %d vectors for %d texts", b.start, len(out), len(b.texts)), nil)
				return
			}
			copy(vectors[b.start:], out)
		}(b)
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}

	e.logger.Debug("embedded batch", "texts", len(texts), "sub_batches", len(batches))
	return vectors, nil
}
