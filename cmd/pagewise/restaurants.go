package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/pagewise/internal/api"
	"github.com/kalambet/pagewise/internal/config"
	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/restaurant"
	"github.com/kalambet/pagewise/internal/websearch"
)

var restaurantsCmd = &cobra.Command{
	Use:   "restaurants",
	Short: "Restaurant search service",
}

var restaurantsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the restaurant search server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		return runRestaurantServer(host)
	},
}

var restaurantsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search restaurants through a running restaurant server",
	Long: `Search restaurants through a running restaurant server.

Examples:
  pagewise restaurants search "italian food" --location Rome
  pagewise restaurants search "ramen in Berlin"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")

		client, err := newRestaurantClient()
		if err != nil {
			return err
		}

		res, err := searchRestaurants(cmd.Context(), client, strings.Join(args, " "), location)
		if err != nil {
			return err
		}
		printRestaurants(res)
		return nil
	},
}

func init() {
	restaurantsServeCmd.Flags().String("host", "127.0.0.1", "interface to listen on")
	restaurantsSearchCmd.Flags().String("location", "", "city or area to search in")
	restaurantsCmd.AddCommand(restaurantsServeCmd)
	restaurantsCmd.AddCommand(restaurantsSearchCmd)
}

func openRestaurantService(ctx context.Context, cfg config.Config, log *slog.Logger) (*restaurant.Service, error) {
	if err := cfg.RequireRestaurant(); err != nil {
		return nil, err
	}

	var llm engine.Completer
	if cfg.Gemini.APIKey != "" {
		g, err := engine.NewGemini(ctx, engine.GeminiOptions{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("opening gemini client: %w", err)
		}
		llm = g
	} else {
		log.Warn("gemini.api_key not set, restaurant suggestions disabled")
	}

	var web websearch.Searcher
	if cfg.Tavily.APIKey != "" {
		web = websearch.NewClient(cfg.Tavily.APIKey, cfg.Tavily.BaseURL)
	} else {
		log.Warn("tavily.api_key not set, restaurant web search disabled")
	}
	return restaurant.NewService(web, llm, log), nil
}

func runRestaurantServer(host string) error {
	banner("restaurant server")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openRestaurantService(ctx, cfg, log)
	if err != nil {
		return err
	}

	handler := api.NewRestaurantHandler(api.RestaurantDeps{
		Restaurants: svc,
		Origins:     cfg.Server.Origins(),
		Logger:      log,
	})
	log.Info("restaurant service ready", "model", svc.Model())

	return listenAndServe(ctx, fmt.Sprintf("%s:%d", host, cfg.Server.RestaurantPort), handler, log)
}

func printRestaurants(res restaurantResult) {
	if len(res.Restaurants) == 0 {
		printWarning("no restaurants found")
		return
	}
	for i, r := range res.Restaurants {
		fmt.Fprintf(os.Stdout, "%d. %s\n", i+1, colorize(bold, r.Name))
		if r.Cuisine != "" {
			fmt.Fprintf(os.Stdout, "   %s\n", r.Cuisine)
		}
		if r.Address != "" {
			fmt.Fprintf(os.Stdout, "   %s\n", r.Address)
		}
		for _, f := range []struct {
			label string
			val   *string
		}{{"rating", r.Rating}, {"price", r.Price}, {"hours", r.Hours}, {"phone", r.Phone}} {
			if f.val != nil && *f.val != "" {
				fmt.Fprintf(os.Stdout, "   %s: %s\n", f.label, *f.val)
			}
		}
		if r.Description != "" {
			fmt.Fprintf(os.Stdout, "   %s\n", r.Description)
		}
		if r.Website != nil && *r.Website != "" {
			fmt.Fprintf(os.Stdout, "   %s\n", colorize(cyan, *r.Website))
		}
	}
	printStatus("Source", "%s (%.2fs)", res.Source, res.ProcessingTime)
}
