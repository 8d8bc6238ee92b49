package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/pagewise/internal/engine"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 64

// Embedder wraps an engine.Embedder and splits large inputs into batches
// that are embedded concurrently.
type Embedder struct {
	engine    engine.Embedder
	batchSize int
}

// NewEmbedder creates an Embedder over the given engine.
func NewEmbedder(e engine.Embedder) *Embedder {
	return &Embedder{engine: e, batchSize: defaultBatchSize}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.engine.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding text: got %d vectors, want 1", len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text, in input order.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.engine.Embed(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
