package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// mockEngine implements engine.Embedder for testing.
type mockEngine struct {
	mu      sync.Mutex
	calls   int
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.embedFn(ctx, texts)
}

// letterVector is a deterministic bag-of-letters embedding. The trailing
// constant keeps every vector non-zero.
func letterVector(text string) []float32 {
	v := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	v[26] = 0.01
	return v
}

func letterEngine() *mockEngine {
	return &mockEngine{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = letterVector(t)
		}
		return out, nil
	}}
}

func TestEmbed_Single(t *testing.T) {
	e := NewEmbedder(letterEngine())

	vec, err := e.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 27 || vec[0] != 1 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	e := NewEmbedder(&mockEngine{embedFn: func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}})

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	m := letterEngine()
	e := NewEmbedder(m)
	e.batchSize = 2

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i := range texts {
		if vecs[i][i] != float32(i+1) {
			t.Errorf("vecs[%d] does not belong to %q", i, texts[i])
		}
	}
	if m.calls != 3 {
		t.Errorf("engine called %d times, want 3", m.calls)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	m := letterEngine()
	vecs, err := NewEmbedder(m).EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", vecs, err)
	}
	if m.calls != 0 {
		t.Errorf("engine called %d times for empty input", m.calls)
	}
}

func TestEmbedBatch_ShortResponse(t *testing.T) {
	e := NewEmbedder(&mockEngine{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}})

	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for vector count mismatch")
	}
}

func TestEmbedBatch_ErrorFailsAll(t *testing.T) {
	e := NewEmbedder(&mockEngine{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		if texts[0] == "bad" {
			return nil, errors.New("boom")
		}
		return [][]float32{{1}}, nil
	}})
	e.batchSize = 1

	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "bad", "ok"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
