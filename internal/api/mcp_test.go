package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/pagewise/internal/notebook"
	"github.com/kalambet/pagewise/internal/restaurant"
	"github.com/kalambet/pagewise/internal/storage"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(MCPDeps{Notebooks: &mockNotebooks{}, Restaurants: &mockRestaurants{}})
	tools := s.ListTools()
	for _, name := range []string{"list_notebooks", "ask_notebook", "search_restaurants"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}

	only := NewMCPServer(MCPDeps{Restaurants: &mockRestaurants{}})
	if only.GetTool("ask_notebook") != nil {
		t.Error("notebook tools registered without a notebook service")
	}
}

func TestMCPTool_ListNotebooks(t *testing.T) {
	deps := MCPDeps{Notebooks: &mockNotebooks{list: []storage.Notebook{
		{ID: "nb-1", Name: "Falcon", FileName: "f.pdf", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), SourcesCount: 1},
	}}}

	result, err := mcpListNotebooks(deps)(context.Background(), makeCallToolRequest("list_notebooks", nil))
	if err != nil || result.IsError {
		t.Fatalf("unexpected error: %v %v", err, result)
	}

	var items []notebookItem
	if err := json.Unmarshal([]byte(toolText(t, result)), &items); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(items) != 1 || items[0].ID != "nb-1" || items[0].CreatedAt != "2025-01-02T03:04:05Z" {
		t.Errorf("items = %+v", items)
	}
}

func TestMCPTool_AskNotebook(t *testing.T) {
	deps := MCPDeps{Notebooks: &mockNotebooks{
		queryFn: func(_ context.Context, id, q string) (notebook.Answer, error) {
			if id == "missing" {
				return notebook.Answer{}, notebook.ErrNotFound
			}
			return notebook.Answer{Answer: "Paris", Source: notebook.SourceWeb, WebSources: []notebook.WebSource{{Title: "Wiki", URL: "u"}}}, nil
		},
	}}
	handler := mcpAskNotebook(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("ask_notebook", map[string]interface{}{
		"session_id": "nb-1",
		"question":   "Capital of France?",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var resp queryResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Paris" || resp.Source != "web" || len(resp.WebSources) != 1 {
		t.Errorf("resp = %+v", resp)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("ask_notebook", map[string]interface{}{"session_id": "nb-1"}))
	if !result.IsError {
		t.Error("expected error for missing question")
	}

	result, _ = handler(context.Background(), makeCallToolRequest("ask_notebook", map[string]interface{}{
		"session_id": "missing",
		"question":   "q",
	}))
	if !result.IsError {
		t.Error("expected error for unknown notebook")
	}
}

func TestMCPTool_SearchRestaurants(t *testing.T) {
	m := &mockRestaurants{res: restaurant.Result{
		Restaurants: []restaurant.Restaurant{{Name: "Da Mario"}},
		Source:      restaurant.SourceMerged,
	}}
	handler := mcpSearchRestaurants(MCPDeps{Restaurants: m})

	result, _ := handler(context.Background(), makeCallToolRequest("search_restaurants", map[string]interface{}{
		"query":    "pizza",
		"location": "Naples",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if m.got.Query != "pizza" || m.got.Location != "Naples" {
		t.Errorf("service got %+v", m.got)
	}

	m.err = errors.New("both lookups failed")
	result, _ = handler(context.Background(), makeCallToolRequest("search_restaurants", map[string]interface{}{"query": "pizza"}))
	if !result.IsError {
		t.Error("expected error result")
	}
	if m.got.Location != "" {
		t.Errorf("location = %q, want empty", m.got.Location)
	}
}
