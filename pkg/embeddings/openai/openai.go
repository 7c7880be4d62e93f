// Package openai implements pkg/embeddings' Embedder for the OpenAI embeddings
// API and compatible servers.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/embedsvc/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)

	// MaxBatchSize is the maximum number of inputs per API call.
	MaxBatchSize = 2048
)

// Embedder wraps the OpenAI embeddings endpoint.
type Embedder struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	APIKey string

	// BaseURL points at an OpenAI-compatible API. Optional.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions is sent with each request when positive.
	Dimensions int

	MaxRetries int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(cfg.MaxRetries, 0)
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}
	retryClient.Logger = nil
	if cfg.Logger != nil {
		retryClient.Logger = cfg.Logger
	}

	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = retryClient.StandardClient()

	model := goopenai.EmbeddingModel(DefaultEmbeddingModel)
	if cfg.Model != "" {
		model = goopenai.EmbeddingModel(cfg.Model)
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(config),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in chunks of MaxBatchSize, keeping input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for chunk := range slices.Chunk(texts, MaxBatchSize) {
		resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input:      chunk,
			Model:      e.model,
			Dimensions: e.dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating embeddings: %v", embeddings.ErrEmbedding, err)
		}
		if len(resp.Data) != len(chunk) {
			return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs",
				embeddings.ErrEmbedding, len(resp.Data), len(chunk))
		}

		data := slices.Clone(resp.Data)
		slices.SortFunc(data, func(a, b goopenai.Embedding) int { return a.Index - b.Index })
		for _, d := range data {
			all = append(all, d.Embedding)
		}
	}

	return all, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
