package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/pagewise/internal/api"
	"github.com/kalambet/pagewise/internal/config"
	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/janitor"
	"github.com/kalambet/pagewise/internal/notebook"
	"github.com/kalambet/pagewise/internal/retrieval"
	"github.com/kalambet/pagewise/internal/storage"
	"github.com/kalambet/pagewise/internal/websearch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notebook server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		return runNotebookServer(host)
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "interface to listen on")
}

func engineSettings(cfg config.Config) engine.Settings {
	return engine.Settings{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		EmbedProvider: cfg.LLM.EmbedProvider,
		EmbedModel:    cfg.LLM.EmbedModel,
		OpenAIKey:     cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		GeminiKey:     cfg.Gemini.APIKey,
		AnthropicKey:  cfg.Anthropic.APIKey,
		OllamaBaseURL: cfg.Ollama.BaseURL,
	}
}

// notebookStack is everything the notebook service needs, opened from
// config. Close releases the database.
type notebookStack struct {
	store   *storage.Store
	service *notebook.Service
}

func (s *notebookStack) Close() error { return s.store.Close() }

func openNotebookStack(ctx context.Context, cfg config.Config, log *slog.Logger) (*notebookStack, error) {
	if err := cfg.RequireNotebook(); err != nil {
		return nil, err
	}

	llm, embed, err := engine.Open(ctx, engineSettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening model provider: %w", err)
	}
	if err := ensureLocalModels(ctx, cfg, llm, embed); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	index, err := retrieval.NewIndexStore(notebook.IndexDir(cfg.Storage.DataDir))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	retriever := retrieval.NewRetriever(retrieval.NewEmbedder(embed), index)
	web := websearch.NewClient(cfg.Tavily.APIKey, cfg.Tavily.BaseURL)

	svc := notebook.New(store, retriever, llm, web, notebook.Options{
		DataDir:       cfg.Storage.DataDir,
		TopK:          cfg.Retrieval.TopK,
		ChunkSize:     cfg.Retrieval.ChunkSize,
		ChunkOverlap:  cfg.Retrieval.ChunkOverlap,
		MaxPDFSources: cfg.Retrieval.MaxPDFSources,
		MaxWebSources: cfg.Retrieval.MaxWebSources,
		Logger:        log,
	})
	return &notebookStack{store: store, service: svc}, nil
}

// ensureLocalModels pulls whichever of the configured models are served by
// a local engine.
func ensureLocalModels(ctx context.Context, cfg config.Config, llm engine.Completer, embed engine.Embedder) error {
	if cfg.LLM.Provider == "ollama" {
		if local, ok := llm.(engine.Local); ok {
			if err := engine.EnsureReady(ctx, local, os.Stderr, cfg.LLM.Model); err != nil {
				return err
			}
		}
	}
	if cfg.LLM.EmbedProvider == "ollama" {
		if local, ok := embed.(engine.Local); ok {
			if err := engine.EnsureReady(ctx, local, os.Stderr, cfg.LLM.EmbedModel); err != nil {
				return err
			}
		}
	}
	return nil
}

func runNotebookServer(host string) error {
	banner("notebook server")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := openNotebookStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Error("closing storage", "error", err)
		}
	}()

	grace, err := time.ParseDuration(cfg.Janitor.Grace)
	if err != nil {
		return fmt.Errorf("invalid janitor.grace %q: %w", cfg.Janitor.Grace, err)
	}
	sweeper := janitor.New(stack.store, grace,
		notebook.PDFDir(cfg.Storage.DataDir), notebook.IndexDir(cfg.Storage.DataDir))
	c := janitor.NewCron(log)
	if _, err := sweeper.Schedule(c, cfg.Janitor.Schedule); err != nil {
		return err
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if cfg.Server.APIToken == "" {
		log.Warn("server.api_token is unset; upload and delete are open to any caller")
	}

	handler := api.NewNotebookHandler(api.NotebookDeps{
		Notebooks: stack.service,
		Token:     cfg.Server.APIToken,
		Origins:   cfg.Server.Origins(),
		Logger:    log,
	})
	log.Info("notebook service ready",
		"model", stack.service.Model(),
		"embed_model", cfg.LLM.EmbedModel,
		"data_dir", cfg.Storage.DataDir)

	return listenAndServe(ctx, fmt.Sprintf("%s:%d", host, cfg.Server.Port), handler, log)
}

// listenAndServe binds addr and serves handler on it until ctx is cancelled.
func listenAndServe(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return serve(ctx, ln, handler, log)
}

// serve runs handler on ln until ctx is cancelled or the server fails, then
// drains in-flight requests. Request contexts keep ctx's values but not its
// cancellation, so a shutdown signal lets accepted requests finish.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, log *slog.Logger) error {
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return base
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
