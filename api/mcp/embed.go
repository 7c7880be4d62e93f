package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	embedToolName    = "embed"
	embedDescription = "Embed product texts and add them to the collection. Returns the ids assigned to the new documents in input order."
)

// EmbedInput represents the input arguments for the embed tool.
type EmbedInput struct {
	Texts []string `json:"texts" jsonschema:"the texts to embed and store"`
}

// EmbedOutput represents the output of the embed tool. Vectors are omitted.
type EmbedOutput struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func (s *Server) handleEmbed(ctx context.Context, _ *mcp.CallToolRequest, input EmbedInput) (*mcp.CallToolResult, EmbedOutput, error) {
	logger := s.config.Logger

	if len(input.Texts) == 0 {
		return toolError("texts is required"), EmbedOutput{}, nil
	}

	logger.Debug("MCP embed request", "texts", len(input.Texts))

	res, err := s.config.Collection.Embed(ctx, input.Texts)
	if err != nil {
		logger.Error("MCP embed failed", "error", err)
		return toolError("Failed to embed texts: %v", err), EmbedOutput{}, nil
	}

	output := EmbedOutput{
		IDs:   res.IDs,
		Count: len(res.IDs),
	}

	result, err := jsonResult(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), EmbedOutput{}, nil
	}
	return result, output, nil
}
