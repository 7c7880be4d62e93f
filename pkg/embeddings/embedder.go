// Package embeddings defines the text embedding contract shared by the
// collection, the API and the providers under this directory.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding wraps every failure returned by an Embedder.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into embeddings with a single model call.
	// The result has one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
