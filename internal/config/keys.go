package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key string
	typ keyType
	env string
	// aliases are conventional variable names consulted when env is unset.
	aliases []string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PAGEWISE_SERVER_PORT", aliases: []string{"PORT"},
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.restaurant_port", typ: kInt, env: "PAGEWISE_SERVER_RESTAURANT_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.RestaurantPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RestaurantPort },
	},
	{
		key: "server.cors_origins", typ: kString, env: "PAGEWISE_SERVER_CORS_ORIGINS", aliases: []string{"CORS_ORIGINS"},
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "server.api_token", typ: kString, env: "PAGEWISE_SERVER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PAGEWISE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "PAGEWISE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "llm.provider", typ: kString, env: "PAGEWISE_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "PAGEWISE_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.embed_provider", typ: kString, env: "PAGEWISE_LLM_EMBED_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedProvider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedProvider },
	},
	{
		key: "llm.embed_model", typ: kString, env: "PAGEWISE_LLM_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "openai.api_key", typ: kString, env: "PAGEWISE_OPENAI_API_KEY", aliases: []string{"OPENAI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "PAGEWISE_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "gemini.api_key", typ: kString, env: "PAGEWISE_GEMINI_API_KEY", aliases: []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "PAGEWISE_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "anthropic.api_key", typ: kString, env: "PAGEWISE_ANTHROPIC_API_KEY", aliases: []string{"ANTHROPIC_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Anthropic.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "PAGEWISE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "tavily.api_key", typ: kString, env: "PAGEWISE_TAVILY_API_KEY", aliases: []string{"TAVILY_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tavily.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Tavily.APIKey },
	},
	{
		key: "tavily.base_url", typ: kString, env: "PAGEWISE_TAVILY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Tavily.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Tavily.BaseURL },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "PAGEWISE_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.chunk_size", typ: kInt, env: "PAGEWISE_RETRIEVAL_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkSize },
	},
	{
		key: "retrieval.chunk_overlap", typ: kInt, env: "PAGEWISE_RETRIEVAL_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkOverlap },
	},
	{
		key: "retrieval.max_pdf_sources", typ: kInt, env: "PAGEWISE_RETRIEVAL_MAX_PDF_SOURCES", aliases: []string{"MAX_PDF_SOURCES"},
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxPDFSources = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxPDFSources },
	},
	{
		key: "retrieval.max_web_sources", typ: kInt, env: "PAGEWISE_RETRIEVAL_MAX_WEB_SOURCES", aliases: []string{"MAX_WEB_SOURCES"},
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MaxWebSources = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MaxWebSources },
	},
	{
		key: "janitor.schedule", typ: kString, env: "PAGEWISE_JANITOR_SCHEDULE",
		apply:   func(cfg *Config, v any) { cfg.Janitor.Schedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Janitor.Schedule },
	},
	{
		key: "janitor.grace", typ: kString, env: "PAGEWISE_JANITOR_GRACE",
		apply:   func(cfg *Config, v any) { cfg.Janitor.Grace = v.(string) },
		extract: func(cfg Config) any { return cfg.Janitor.Grace },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the key's env var and
// its aliases, along with the name it was found under.
func (s keySpec) lookupEnv() (string, string) {
	for _, name := range append([]string{s.env}, s.aliases...) {
		if name == "" {
			continue
		}
		if raw := os.Getenv(name); raw != "" {
			return raw, name
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, name := s.lookupEnv()
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}

// applySecrets fills secret keys still empty after env overrides.
func applySecrets(cfg *Config, ss secretStore) {
	if ss == nil {
		return
	}
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := ss.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
