// Package vector provides the vector store abstraction embedsvc delegates
// storage and nearest-neighbour search to, plus its driver implementations.
package vector

import "context"

// MetadataTextKey is the metadata key holding a document's original text.
const MetadataTextKey = "text"

// Document is a stored item: its text, embedding and metadata.
type Document struct {
	// ID is the unique, server-generated identifier of the document.
	ID string

	// Text is the original document text.
	Text string

	// Embedding is the vector representation of Text.
	Embedding []float32

	// Metadata carries arbitrary per-document attributes. embedsvc always
	// stores the original text under MetadataTextKey.
	Metadata map[string]any
}

// QueryResult is a nearest-neighbour match.
type QueryResult struct {
	Document

	// Distance is the store's distance between the query and the document.
	// Lower means closer. The metric is driver specific.
	Distance float32
}

// Driver handles storage and retrieval of embedded documents for a single
// collection.
type Driver interface {
	// Add stores documents with their embeddings. Implementations should
	// update documents whose ID already exists.
	Add(ctx context.Context, docs []Document) error

	// Query returns up to topK documents nearest to embedding, closest first.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// List returns every stored document.
	List(ctx context.Context) ([]Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
