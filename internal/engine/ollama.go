package engine

import (
	"context"

	"github.com/kalambet/pagewise/internal/ollama"
)

// Ollama adapts the local Ollama client to Completer, Embedder and Local.
type Ollama struct {
	client     *ollama.Client
	model      string
	embedModel string
}

func NewOllama(baseURL, model, embedModel string) *Ollama {
	return &Ollama{client: ollama.New(baseURL), model: model, embedModel: embedModel}
}

func (e *Ollama) Model() string { return e.model }

func (e *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]ollama.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: req.Prompt})
	return e.client.Chat(ctx, e.model, msgs, &ollama.Options{Temperature: req.Temperature})
}

func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.client.Embed(ctx, e.embedModel, texts)
}

func (e *Ollama) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *Ollama) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *Ollama) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{
				Status:    p.Status,
				Total:     p.Total,
				Completed: p.Completed,
			})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
