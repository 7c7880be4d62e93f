// Package collection binds an embedder, a vector driver and an event publisher
// to a single named collection of text documents.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/embedsvc/pkg/embeddings"
	"github.com/papercomputeco/embedsvc/pkg/eventstream"
	"github.com/papercomputeco/embedsvc/pkg/eventstream/nop"
	"github.com/papercomputeco/embedsvc/pkg/vector"
)

// DefaultName is the collection used when none is configured.
const DefaultName = "test-products"

// ErrNoTexts is returned by Embed for an empty batch.
var ErrNoTexts = errors.New("texts must not be empty")

// Config wires a Collection to its collaborators.
type Config struct {
	Name      string
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Publisher eventstream.Publisher
	Logger    *slog.Logger
}

// Collection is safe for concurrent use. Writes are serialized so the
// reported total after each embed reflects that call's own additions.
type Collection struct {
	name      string
	embedder  embeddings.Embedder
	driver    vector.Driver
	publisher eventstream.Publisher
	logger    *slog.Logger

	writeMu sync.Mutex
}

// EmbedResult is returned by Embed in input order.
type EmbedResult struct {
	Embeddings [][]float32 `json:"embeddings"`
	IDs        []string    `json:"ids"`

	// Total is the collection size right after the add, or -1 if it could
	// not be read.
	Total int `json:"-"`
}

// SearchResult groups hits per query vector. A single query always yields
// exactly one group.
type SearchResult struct {
	Query   string      `json:"query"`
	TopK    int         `json:"top_k"`
	Results [][]string  `json:"results"`
	Scores  [][]float32 `json:"scores"`
	IDs     [][]string  `json:"-"`
}

// Dump is the full contents of a collection.
type Dump struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Included   []string         `json:"included"`
}

// New validates the config and returns a Collection. A nil publisher
// disables events.
func New(c Config) (*Collection, error) {
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Driver == nil {
		return nil, fmt.Errorf("vector driver is required")
	}

	name := c.Name
	if name == "" {
		name = DefaultName
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Collection{
		name:      name,
		embedder:  c.Embedder,
		driver:    c.Driver,
		publisher: publisher,
		logger:    logger.With("collection", name),
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Embed embeds all texts with one model call, stores them under fresh UUIDs
// and returns the vectors and ids in input order.
func (c *Collection) Embed(ctx context.Context, texts []string) (*EmbedResult, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", embeddings.ErrEmbedding, len(vectors), len(texts))
	}

	ids := make([]string, len(texts))
	docs := make([]vector.Document, len(texts))
	for i, text := range texts {
		ids[i] = uuid.NewString()
		docs[i] = vector.Document{
			ID:        ids[i],
			Text:      text,
			Embedding: vectors[i],
			Metadata:  vector.TextMetadata(text),
		}
	}

	total, err := c.add(ctx, docs)
	if err != nil {
		return nil, err
	}

	event := eventstream.NewDocumentsAddedEvent(c.name, ids, texts, total)
	if err := c.publisher.PublishDocumentsAdded(ctx, event); err != nil {
		c.logger.Warn("publishing documents added event failed", "event_id", event.EventID, "error", err)
	}

	return &EmbedResult{
		Embeddings: vectors,
		IDs:        ids,
		Total:      total,
	}, nil
}

func (c *Collection) add(ctx context.Context, docs []vector.Document) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.driver.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("storing documents: %w", err)
	}

	total, err := c.driver.Count(ctx)
	if err != nil {
		c.logger.Warn("counting collection after add failed", "added", len(docs), "error", err)
		return -1, nil
	}

	c.logger.Info("added documents", "added", len(docs), "total", total)
	return total, nil
}

// Search embeds query and returns the topK nearest documents with their
// distances, nearest first. Non-positive topK is left to the driver.
func (c *Collection) Search(ctx context.Context, query string, topK int) (*SearchResult, error) {
	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := c.driver.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	texts := make([]string, len(hits))
	scores := make([]float32, len(hits))
	ids := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
		scores[i] = hit.Distance
		ids[i] = hit.ID
	}

	return &SearchResult{
		Query:   query,
		TopK:    topK,
		Results: [][]string{texts},
		Scores:  [][]float32{scores},
		IDs:     [][]string{ids},
	}, nil
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.driver.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting vector store: %w", err)
	}
	return n, nil
}

// GetAll dumps every document. Embeddings are only included on request and
// are otherwise null.
func (c *Collection) GetAll(ctx context.Context, includeEmbeddings bool) (*Dump, error) {
	docs, err := c.driver.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vector store: %w", err)
	}

	dump := &Dump{
		IDs:       make([]string, len(docs)),
		Documents: make([]string, len(docs)),
		Metadatas: make([]map[string]any, len(docs)),
		Included:  []string{"metadatas", "documents"},
	}
	if includeEmbeddings {
		dump.Embeddings = make([][]float32, len(docs))
		dump.Included = append(dump.Included, "embeddings")
	}

	for i, doc := range docs {
		dump.IDs[i] = doc.ID
		dump.Documents[i] = doc.Text
		dump.Metadatas[i] = doc.Metadata
		if includeEmbeddings {
			dump.Embeddings[i] = doc.Embedding
		}
	}

	return dump, nil
}

// Close releases the publisher, driver and embedder, in that order.
func (c *Collection) Close() error {
	return errors.Join(
		c.publisher.Close(),
		c.driver.Close(),
		c.embedder.Close(),
	)
}
