package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the product collection using semantic search. Returns the nearest stored texts with their distances, closest first."
)

const defaultTopK = 5

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchOutput represents the output of the search tool. Results and scores
// are grouped per query vector.
type SearchOutput struct {
	Query   string      `json:"query"`
	TopK    int         `json:"top_k"`
	Results [][]string  `json:"results"`
	Scores  [][]float32 `json:"scores"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"top_k", topK,
	)

	res, err := s.config.Collection.Search(ctx, input.Query, topK)
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return toolError("Failed to search collection: %v", err), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   res.Query,
		TopK:    res.TopK,
		Results: res.Results,
		Scores:  res.Scores,
	}

	result, err := jsonResult(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError("Failed to serialize results: %v", err), SearchOutput{}, nil
	}
	return result, output, nil
}
