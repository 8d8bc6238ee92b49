package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI serves completions and embeddings from any OpenAI-compatible API.
type OpenAI struct {
	llm      *openai.LLM
	model    string
	embedder *embeddings.EmbedderImpl
}

// NewOpenAI creates an OpenAI engine. An empty baseURL keeps the library
// default.
func NewOpenAI(apiKey, baseURL, model, embedModel string) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if embedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(embedModel))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(64))
	if err != nil {
		return nil, fmt.Errorf("creating openai embedder: %w", err)
	}
	return &OpenAI{llm: llm, model: model, embedder: emb}, nil
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := o.llm.GenerateContent(ctx, msgs, llms.WithTemperature(req.Temperature))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: no choices returned")
	}
	return resp.Choices[0].Content, nil
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vecs, nil
}
