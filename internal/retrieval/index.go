package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kalambet/pagewise/internal/document"
	"github.com/philippgille/chromem-go"
)

// ErrIndexNotFound is returned when a notebook has no persisted index.
var ErrIndexNotFound = errors.New("index not found")

const (
	collectionName = "chunks"
	// PartialSuffix marks an index directory that is still being built.
	PartialSuffix = ".partial"
)

// ScoredChunk is a retrieved chunk with its cosine similarity to the query.
type ScoredChunk struct {
	document.Chunk
	Score float32
}

// IndexStore keeps one persistent chromem database per notebook under root.
// Indexes are built in a sibling ".partial" directory and renamed into place,
// so a reader never observes a half-written index. Nothing is cached between
// queries; each search loads the notebook's index from disk.
type IndexStore struct {
	root string

	// mu orders publishing and removal against loading.
	mu sync.RWMutex
}

// NewIndexStore creates the root directory if needed.
func NewIndexStore(root string) (*IndexStore, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	return &IndexStore{root: root}, nil
}

func (s *IndexStore) dir(id string) string { return filepath.Join(s.root, id) }

// Vectors are always computed by the caller, so the collection must never
// embed on its own.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("index has no embedding function")
}

// Build persists chunks and their vectors as the index for id, replacing any
// previous index.
func (s *IndexStore) Build(ctx context.Context, id string, chunks []document.Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("building index: %d chunks but %d vectors", len(chunks), len(vecs))
	}
	if len(chunks) == 0 {
		return errors.New("building index: no chunks")
	}

	partial := s.dir(id) + PartialSuffix
	if err := os.RemoveAll(partial); err != nil {
		return fmt.Errorf("clearing partial index: %w", err)
	}

	db, err := chromem.NewPersistentDB(partial, false)
	if err != nil {
		return fmt.Errorf("opening partial index: %w", err)
	}
	col, err := db.CreateCollection(collectionName, map[string]string{"notebook_id": id}, noEmbed)
	if err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   c.Text,
			Embedding: vecs[i],
			Metadata: map[string]string{
				"file_name":  c.FileName,
				"page_start": strconv.Itoa(c.PageStart),
				"page_end":   strconv.Itoa(c.PageEnd),
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, 4); err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("adding documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir(id)); err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("replacing index: %w", err)
	}
	if err := os.Rename(partial, s.dir(id)); err != nil {
		os.RemoveAll(partial)
		return fmt.Errorf("publishing index: %w", err)
	}
	return nil
}

// index is one notebook's collection, loaded for a single query.
type index struct {
	col *chromem.Collection
}

// load reads the index for id into memory.
func (s *IndexStore) load(id string) (*index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.dir(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
		return nil, err
	}
	db, err := chromem.NewPersistentDB(s.dir(id), false)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	col := db.GetCollection(collectionName, noEmbed)
	if col == nil {
		return nil, ErrIndexNotFound
	}
	return &index{col: col}, nil
}

// search returns up to k chunks ranked by similarity to vec, best first.
func (ix *index) search(ctx context.Context, vec []float32, k int) ([]ScoredChunk, error) {
	k = min(k, ix.col.Count())
	if k <= 0 {
		return nil, nil
	}

	res, err := ix.col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	out := make([]ScoredChunk, len(res))
	for i, r := range res {
		start, _ := strconv.Atoi(r.Metadata["page_start"])
		end, _ := strconv.Atoi(r.Metadata["page_end"])
		out[i] = ScoredChunk{
			Chunk: document.Chunk{
				Text:      r.Content,
				FileName:  r.Metadata["file_name"],
				PageStart: start,
				PageEnd:   end,
			},
			Score: r.Similarity,
		}
	}
	return out, nil
}

// Remove deletes the index for id and any partial build. Removing a missing
// index is not an error.
func (s *IndexStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(os.RemoveAll(s.dir(id)), os.RemoveAll(s.dir(id)+PartialSuffix))
}
