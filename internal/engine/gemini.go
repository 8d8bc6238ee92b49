package engine

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini serves completions and embeddings through the Gemini API.
type Gemini struct {
	client     *genai.Client
	model      string
	embedModel string
}

// GeminiOptions configures NewGemini. BaseURL overrides the API endpoint.
type GeminiOptions struct {
	APIKey     string
	Model      string
	EmbedModel string
	BaseURL    string
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: opts.Model, embedModel: opts.EmbedModel}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini completion: empty response")
	}
	return text, nil
}

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}
