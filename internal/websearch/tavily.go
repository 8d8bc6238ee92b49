// Package websearch queries the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Depth values accepted by Search.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Result is one normalized search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Options tune a single search.
type Options struct {
	Depth      string
	MaxResults int
}

// Searcher is implemented by Client; services depend on it so tests can
// substitute a fake.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Client talks to the Tavily REST API. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
}

// NewClient creates a Tavily client. An empty baseURL selects the public API.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		backoff: initialBackoff,
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search runs one query. Rate-limited and server-error responses are retried
// with exponential backoff.
func (c *Client) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Depth == "" {
		opts.Depth = DepthBasic
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	body, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: opts.Depth,
		MaxResults:  opts.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res, err := c.doSearch(ctx, body)
		if err == nil {
			return normalize(res, opts.MaxResults), nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("web search failed after %d attempts: %w", maxRetries, lastErr)
}

// statusError is returned for responses worth retrying (429 and 5xx).
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tavily returned HTTP %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	return errors.As(err, &se)
}

func (c *Client) doSearch(ctx context.Context, body []byte) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

func normalize(res *searchResponse, limit int) []Result {
	out := make([]Result, 0, len(res.Results))
	for _, r := range res.Results {
		title := CleanText(r.Title)
		if title == "" {
			title = "Untitled"
		}
		content := r.Content
		if strings.TrimSpace(content) == "" {
			content = r.Snippet
		}
		out = append(out, Result{
			Title:   title,
			URL:     r.URL,
			Content: CleanText(content),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}
