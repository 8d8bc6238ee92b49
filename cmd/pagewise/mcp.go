package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/pagewise/internal/api"
	"github.com/kalambet/pagewise/internal/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve notebook and restaurant tools over MCP stdio",
	Long: `Serve notebook and restaurant tools over MCP stdio.

Each service is exposed only when its credentials are configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.MCPDeps{Version: version}

	if stack, err := openNotebookStack(ctx, cfg, log); err != nil {
		log.Warn("notebook tools disabled", "error", err)
	} else {
		defer stack.Close()
		deps.Notebooks = stack.service
	}

	if svc, err := openRestaurantService(ctx, cfg, log); err != nil {
		log.Warn("restaurant tools disabled", "error", err)
	} else {
		deps.Restaurants = svc
	}

	return server.ServeStdio(api.NewMCPServer(deps))
}
