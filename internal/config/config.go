package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	LLM       LLMConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Anthropic AnthropicConfig
	Ollama    OllamaConfig
	Tavily    TavilyConfig
	Retrieval RetrievalConfig
	Janitor   JanitorConfig
}

type ServerConfig struct {
	Port           int
	RestaurantPort int
	APIToken       string
	// CORSOrigins is a comma-separated allow-list.
	CORSOrigins string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// LLMConfig selects the providers used by the notebook service.
type LLMConfig struct {
	Provider      string
	Model         string
	EmbedProvider string
	EmbedModel    string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	// Model is used by the restaurant service.
	Model string
}

type AnthropicConfig struct {
	APIKey string
}

type OllamaConfig struct {
	BaseURL string
}

type TavilyConfig struct {
	APIKey  string
	BaseURL string
}

type RetrievalConfig struct {
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
	MaxPDFSources int
	MaxWebSources int
}

type JanitorConfig struct {
	Schedule string
	Grace    string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			RestaurantPort: 8001,
			CORSOrigins:    "http://localhost:3000,file://",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			EmbedProvider: "openai",
			EmbedModel:    "text-embedding-3-large",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Tavily: TavilyConfig{
			BaseURL: "https://api.tavily.com",
		},
		Retrieval: RetrievalConfig{
			TopK:          5,
			ChunkSize:     1000,
			ChunkOverlap:  200,
			MaxPDFSources: 5,
			MaxWebSources: 3,
		},
		Janitor: JanitorConfig{
			Schedule: "@every 15m",
			Grace:    "1h",
		},
	}
}

// Origins splits the CORS allow-list into trimmed, non-empty entries.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from .env, the config file, environment
// variables and the secrets file, in increasing precedence except that the
// secrets file only fills API keys left empty by the environment.
//
// The config file lives at $XDG_CONFIG_HOME/pagewise/config.yaml, or
// config.toml when that file exists instead.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadFromPath(path string, ss secretStore) (Config, error) {
	return loadWith(newFileBackend(path), ss)
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, ss)

	return cfg, nil
}

// RequireNotebook reports the credentials the notebook service cannot start
// without, given the selected providers.
func (c Config) RequireNotebook() error {
	var missing []string
	for _, p := range []string{c.LLM.Provider, c.LLM.EmbedProvider} {
		if k := c.providerKeyMissing(p); k != "" && !containsString(missing, k) {
			missing = append(missing, k)
		}
	}
	if c.Tavily.APIKey == "" {
		missing = append(missing, "tavily.api_key (TAVILY_API_KEY)")
	}
	return missingErr(missing)
}

// RequireRestaurant is the restaurant-service counterpart of RequireNotebook.
// The service runs with either lookup, so only one of the two keys is needed.
func (c Config) RequireRestaurant() error {
	if c.Gemini.APIKey != "" || c.Tavily.APIKey != "" {
		return nil
	}
	return missingErr([]string{"gemini.api_key (GOOGLE_API_KEY) or tavily.api_key (TAVILY_API_KEY)"})
}

func (c Config) providerKeyMissing(provider string) string {
	switch provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return "openai.api_key (OPENAI_API_KEY)"
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return "gemini.api_key (GOOGLE_API_KEY)"
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return "anthropic.api_key (ANTHROPIC_API_KEY)"
		}
	}
	return ""
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required config: %s. Set it via environment variable or %s",
		strings.Join(missing, ", "), secretsFilePath())
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
