package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	countToolName    = "count"
	countDescription = "Count the documents stored in the product collection."
)

// CountInput takes no arguments.
type CountInput struct{}

// CountOutput represents the output of the count tool.
type CountOutput struct {
	Count int `json:"count"`
}

func (s *Server) handleCount(ctx context.Context, _ *mcp.CallToolRequest, _ CountInput) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.config.Collection.Count(ctx)
	if err != nil {
		s.config.Logger.Error("MCP count failed", "error", err)
		return toolError("Failed to count collection: %v", err), CountOutput{}, nil
	}

	output := CountOutput{Count: n}
	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), CountOutput{}, nil
	}
	return result, output, nil
}
