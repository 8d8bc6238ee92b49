package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/pagewise/internal/restaurant"
)

// MCPDeps holds dependencies for the MCP server. Tools whose service is nil
// are not registered.
type MCPDeps struct {
	Notebooks   Notebooks
	Restaurants Restaurants
	Version     string
}

// NewMCPServer creates an MCP server exposing notebook questions and
// restaurant search as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := server.NewMCPServer(
		"pagewise",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("pagewise answers questions from uploaded PDF notebooks, falling back to web search, and recommends restaurants."),
		server.WithRecovery(),
	)

	if deps.Notebooks != nil {
		s.AddTool(
			mcp.NewTool("list_notebooks",
				mcp.WithDescription("List uploaded PDF notebooks, newest first."),
			),
			mcpListNotebooks(deps),
		)

		s.AddTool(
			mcp.NewTool("ask_notebook",
				mcp.WithDescription("Ask a question about a notebook. Answers come from the PDF when it contains the answer, otherwise from a web search."),
				mcp.WithString("session_id", mcp.Description("Notebook ID from list_notebooks"), mcp.Required()),
				mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			),
			mcpAskNotebook(deps),
		)
	}

	if deps.Restaurants != nil {
		s.AddTool(
			mcp.NewTool("search_restaurants",
				mcp.WithDescription("Recommend restaurants for a cuisine, optionally in a location."),
				mcp.WithString("query", mcp.Description("Cuisine or dish, e.g. \"italian food\""), mcp.Required()),
				mcp.WithString("location", mcp.Description("City or neighbourhood")),
			),
			mcpSearchRestaurants(deps),
		)
	}

	return s
}

func mcpListNotebooks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Notebooks.List(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing notebooks failed: %v", err)), nil
		}

		items := make([]notebookItem, len(list))
		for i, nb := range list {
			items[i] = notebookItem{
				ID:           nb.ID,
				Name:         nb.Name,
				FileName:     nb.FileName,
				CreatedAt:    nb.CreatedAt.UTC().Format(time.RFC3339),
				SourcesCount: nb.SourcesCount,
				ChunkCount:   nb.ChunkCount,
			}
		}
		return mcpJSON(items)
	}
}

func mcpAskNotebook(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Notebooks.Query(ctx, id, question)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpJSON(queryResponse{
			Success:        true,
			Answer:         ans.Answer,
			Source:         ans.Source,
			PDFSources:     ans.PDFSources,
			WebSources:     ans.WebSources,
			ChunksUsed:     ans.ChunksUsed,
			ProcessingTime: ans.ProcessingTime,
			Metadata:       queryMetadata{Model: ans.Model, CanAnswer: ans.CanAnswer},
		})
	}
}

func mcpSearchRestaurants(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		res, err := deps.Restaurants.Search(ctx, restaurant.Query{
			Query:    query,
			Location: req.GetString("location", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpJSON(searchResponse{
			Restaurants:    res.Restaurants,
			Source:         res.Source,
			ProcessingTime: res.ProcessingTime,
		})
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
