package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/pagewise/internal/document"
)

// Retriever combines embedding and vector search over per-notebook indexes.
type Retriever struct {
	embedder *Embedder
	store    *IndexStore
}

// NewRetriever creates a Retriever backed by the given Embedder and IndexStore.
func NewRetriever(embedder *Embedder, store *IndexStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Index embeds chunks and persists them as the index for id. It returns the
// number of chunks stored.
func (r *Retriever) Index(ctx context.Context, id string, chunks []document.Chunk) (int, error) {
	vecs, err := r.embedder.EmbedBatch(ctx, document.Texts(chunks))
	if err != nil {
		return 0, err
	}
	if err := r.store.Build(ctx, id, chunks, vecs); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Retrieve returns the top-K chunks of the index for id most similar to
// query. The index is loaded before the query is embedded, so a missing index
// is ErrIndexNotFound whatever the state of the embedding provider.
func (r *Retriever) Retrieve(ctx context.Context, id, query string, topK int) ([]ScoredChunk, error) {
	ix, err := r.store.load(id)
	if err != nil {
		return nil, fmt.Errorf("searching notebook %s: %w", id, err)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	chunks, err := ix.search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching notebook %s: %w", id, err)
	}
	return chunks, nil
}

// Forget removes the index for id.
func (r *Retriever) Forget(id string) error {
	return r.store.Remove(id)
}
