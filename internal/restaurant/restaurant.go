// Package restaurant recommends restaurants by merging web search hits with
// model-generated suggestions.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kalambet/pagewise/internal/engine"
	"github.com/kalambet/pagewise/internal/websearch"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidQuery is returned for queries shorter than minQueryLen.
	ErrInvalidQuery = errors.New("query too short")
	// ErrNotFound is returned when neither source produced a restaurant.
	ErrNotFound = errors.New("no restaurants found")

	errNotConfigured = errors.New("not configured")
)

const (
	minQueryLen = 3
	webResults  = 10

	SourceMerged = "merged"
)

// Restaurant is one recommendation. Optional fields are nil when unknown.
type Restaurant struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Cuisine     string  `json:"cuisine"`
	Rating      *string `json:"rating"`
	Description string  `json:"description"`
	Hours       *string `json:"hours"`
	Price       *string `json:"price"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
}

// Query is a search request. Location is optional.
type Query struct {
	Query    string
	Location string
}

// Result is the merged outcome of a search.
type Result struct {
	Restaurants    []Restaurant
	Source         string
	ProcessingTime float64
}

// Service runs both lookups for a query and merges them.
type Service struct {
	web websearch.Searcher
	llm engine.Completer
	log *slog.Logger
}

// NewService creates a Service. A nil logger selects slog.Default(). Either
// lookup may be nil when its credentials are absent; that lookup then fails on
// every search and the other one carries the result.
func NewService(web websearch.Searcher, llm engine.Completer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{web: web, llm: llm, log: log}
}

// Model names the model behind the suggestion lookup.
func (s *Service) Model() string {
	if s.llm == nil {
		return ""
	}
	return s.llm.Model()
}

// searchText builds the text sent to both lookups.
func searchText(q Query) string {
	if loc := strings.TrimSpace(q.Location); loc != "" {
		return fmt.Sprintf("%s restaurants in %s", q.Query, loc)
	}
	return q.Query + " restaurants"
}

// Search runs the web and model lookups concurrently. A failing lookup is
// logged and contributes nothing; only when both come back empty does Search
// return ErrNotFound.
func (s *Service) Search(ctx context.Context, q Query) (Result, error) {
	start := time.Now()

	q.Query = strings.TrimSpace(q.Query)
	if len([]rune(q.Query)) < minQueryLen {
		return Result{}, ErrInvalidQuery
	}
	text := searchText(q)

	var fromWeb, fromLLM []Restaurant
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.searchWeb(gCtx, text, q.Query)
		if err != nil {
			s.log.Warn("restaurant web search failed", "query", text, "error", err)
			return nil
		}
		fromWeb = r
		return nil
	})
	g.Go(func() error {
		r, err := s.searchLLM(gCtx, text, q.Query)
		if err != nil {
			s.log.Warn("restaurant suggestion lookup failed", "query", text, "error", err)
			return nil
		}
		fromLLM = r
		return nil
	})
	_ = g.Wait()

	merged := merge(fromLLM, fromWeb)
	if len(merged) == 0 {
		return Result{}, ErrNotFound
	}

	res := Result{
		Restaurants:    merged,
		Source:         SourceMerged,
		ProcessingTime: math.Round(time.Since(start).Seconds()*100) / 100,
	}
	s.log.Info("restaurant search",
		"query", text,
		"web", len(fromWeb),
		"llm", len(fromLLM),
		"merged", len(merged),
		"duration_s", res.ProcessingTime,
	)
	return res, nil
}

func (s *Service) searchWeb(ctx context.Context, text, cuisine string) ([]Restaurant, error) {
	if s.web == nil {
		return nil, fmt.Errorf("web search: %w", errNotConfigured)
	}
	hits, err := s.web.Search(ctx, text, websearch.Options{
		Depth:      websearch.DepthAdvanced,
		MaxResults: webResults,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Restaurant, 0, len(hits))
	for _, h := range hits {
		r := Restaurant{
			Name:        h.Title,
			Address:     h.URL,
			Cuisine:     cuisine,
			Description: truncate(h.Content, 200),
		}
		if r.Name == "" || r.Name == "Untitled" {
			r.Name = "Unknown Restaurant"
		}
		if r.Address == "" {
			r.Address = "Address not available"
		}
		if r.Description == "" {
			r.Description = "No description available"
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) searchLLM(ctx context.Context, text, cuisine string) ([]Restaurant, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("suggestion model: %w", errNotConfigured)
	}
	resp, err := s.llm.Complete(ctx, engine.Request{
		Prompt:      fmt.Sprintf(suggestPrompt, text),
		Temperature: suggestTemperature,
	})
	if err != nil {
		return nil, err
	}
	return parseRestaurants(resp, cuisine), nil
}

// merge keeps LLM suggestions first, then web hits whose name has not been
// seen. Names compare case-insensitively after trimming.
func merge(first, second []Restaurant) []Restaurant {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]Restaurant, 0, len(first)+len(second))
	for _, list := range [][]Restaurant{first, second} {
		for _, r := range list {
			key := strings.ToLower(strings.TrimSpace(r.Name))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
