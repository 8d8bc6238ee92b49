package engine

import (
	"context"
	"fmt"
)

// Settings selects and configures the completion and embedding providers.
type Settings struct {
	Provider      string
	Model         string
	EmbedProvider string
	EmbedModel    string

	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
	AnthropicKey  string
	OllamaBaseURL string
}

// Open builds the Completer and Embedder named by s. When both use the same
// provider a single client serves both.
func Open(ctx context.Context, s Settings) (Completer, Embedder, error) {
	completer, err := openProvider(ctx, s, s.Provider)
	if err != nil {
		return nil, nil, err
	}

	embedSrc := any(completer)
	if s.EmbedProvider != s.Provider {
		embedSrc, err = openProvider(ctx, s, s.EmbedProvider)
		if err != nil {
			return nil, nil, err
		}
	}
	embedder, ok := embedSrc.(Embedder)
	if !ok {
		return nil, nil, fmt.Errorf("provider %q does not support embeddings", s.EmbedProvider)
	}
	return completer, embedder, nil
}

func openProvider(ctx context.Context, s Settings, name string) (Completer, error) {
	switch name {
	case "openai":
		return NewOpenAI(s.OpenAIKey, s.OpenAIBaseURL, s.Model, s.EmbedModel)
	case "gemini":
		return NewGemini(ctx, GeminiOptions{APIKey: s.GeminiKey, Model: s.Model, EmbedModel: s.EmbedModel})
	case "anthropic":
		return NewAnthropic(s.AnthropicKey, s.Model), nil
	case "ollama":
		return NewOllama(s.OllamaBaseURL, s.Model, s.EmbedModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
