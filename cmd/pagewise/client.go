package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/pagewise/internal/config"
	"github.com/kalambet/pagewise/internal/notebook"
	"github.com/kalambet/pagewise/internal/restaurant"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Answering a question may involve an LLM gate, a completion and a web
// search, so the client waits longer than a plain API call would.
const clientTimeout = 2 * time.Minute

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.Server.APIToken,
		httpClient: &http.Client{Timeout: clientTimeout},
	}, nil
}

var newRestaurantClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.RestaurantPort),
		httpClient: &http.Client{Timeout: clientTimeout},
	}, nil
}

func (c *apiClient) send(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s, is pagewise running? (%w)", c.baseURL, err)
	}
	return resp, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// upload posts a file as multipart form data under the "pdf" field.
func (c *apiClient) upload(ctx context.Context, path, filePath string, fields map[string]string) (*http.Response, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("pdf", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type uploadResult struct {
	SessionID      string  `json:"session_id"`
	FileName       string  `json:"filename"`
	ChunkCount     int     `json:"chunk_count"`
	ProcessingTime float64 `json:"processing_time"`
	Message        string  `json:"message"`
}

type answerResult struct {
	Answer         string               `json:"answer"`
	Source         string               `json:"source"`
	PDFSources     []notebook.PDFSource `json:"pdf_sources"`
	WebSources     []notebook.WebSource `json:"web_sources"`
	ChunksUsed     int                  `json:"chunks_used"`
	ProcessingTime float64              `json:"processing_time"`
	Metadata       struct {
		Model     string `json:"model"`
		CanAnswer bool   `json:"can_answer"`
	} `json:"metadata"`
}

type notebookEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FileName     string `json:"file_name"`
	CreatedAt    string `json:"created_at"`
	SourcesCount int    `json:"sources_count"`
	ChunkCount   int    `json:"chunk_count"`
}

type restaurantResult struct {
	Restaurants    []restaurant.Restaurant `json:"restaurants"`
	Source         string                  `json:"source"`
	ProcessingTime float64                 `json:"processing_time"`
}

func uploadNotebook(ctx context.Context, c *apiClient, name, filePath string) (uploadResult, error) {
	var res uploadResult
	resp, err := c.upload(ctx, "/api/v1/upload", filePath, map[string]string{"name": name})
	if err != nil {
		return res, err
	}
	err = decodeJSON(resp, &res)
	return res, err
}

func askNotebook(ctx context.Context, c *apiClient, sessionID, question string) (answerResult, error) {
	var res answerResult
	resp, err := c.post(ctx, "/api/v1/query", map[string]any{
		"session_id": sessionID,
		"question":   question,
	})
	if err != nil {
		return res, err
	}
	err = decodeJSON(resp, &res)
	return res, err
}

func listNotebooks(ctx context.Context, c *apiClient) ([]notebookEntry, error) {
	var res struct {
		Notebooks []notebookEntry `json:"notebooks"`
	}
	resp, err := c.get(ctx, "/api/v1/notebooks")
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &res); err != nil {
		return nil, err
	}
	return res.Notebooks, nil
}

func deleteNotebook(ctx context.Context, c *apiClient, id string) error {
	resp, err := c.delete(ctx, "/api/v1/notebooks/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var res map[string]any
	return decodeJSON(resp, &res)
}

func searchRestaurants(ctx context.Context, c *apiClient, query, location string) (restaurantResult, error) {
	var res restaurantResult
	resp, err := c.post(ctx, "/api/search", map[string]string{
		"query":    query,
		"location": location,
	})
	if err != nil {
		return res, err
	}
	err = decodeJSON(resp, &res)
	return res, err
}

// healthy reports whether the server at c answers its health endpoint.
func healthy(ctx context.Context, c *apiClient, path string) bool {
	resp, err := c.get(ctx, path)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
