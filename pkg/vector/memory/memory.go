// Package memory provides an in-process vector driver. It is the default
// store: the collection lives for the lifetime of the process only.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/papercomputeco/embedsvc/pkg/vector"
)

// Driver implements vector.Driver with brute-force squared-L2 search over an
// in-memory map. It is safe for concurrent use.
type Driver struct {
	mu         sync.RWMutex
	docs       map[string]vector.Document
	order      []string
	dimensions int
	logger     *slog.Logger
}

// NewDriver creates an empty in-memory driver. The dimensionality is fixed by
// the first document added.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		docs:   make(map[string]vector.Document),
		logger: logger,
	}
}

// Add stores docs. Either every document is stored or none is.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dims := d.dimensions
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document id is required")
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s: %w: empty embedding", doc.ID, vector.ErrDimensionMismatch)
		}
		if dims == 0 {
			dims = len(doc.Embedding)
		}
		if len(doc.Embedding) != dims {
			return fmt.Errorf("document %s: %w: got %d, want %d",
				doc.ID, vector.ErrDimensionMismatch, len(doc.Embedding), dims)
		}
	}
	d.dimensions = dims

	for _, doc := range docs {
		if _, exists := d.docs[doc.ID]; !exists {
			d.order = append(d.order, doc.ID)
		}
		d.docs[doc.ID] = clone(doc)
	}

	d.logger.Debug("added documents to memory store",
		"count", len(docs),
		"total", len(d.order),
	)

	return nil
}

// Query returns the topK documents with the smallest squared Euclidean
// distance to embedding. Ties keep insertion order. A non-positive topK
// yields no results.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if topK <= 0 || len(d.order) == 0 {
		return []vector.QueryResult{}, nil
	}
	if len(embedding) != d.dimensions {
		return nil, fmt.Errorf("query: %w: got %d, want %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	results := make([]vector.QueryResult, 0, len(d.order))
	for _, id := range d.order {
		doc := d.docs[id]
		dist := vek32.Distance(embedding, doc.Embedding)
		results = append(results, vector.QueryResult{
			Document: clone(doc),
			Distance: dist * dist,
		})
	}

	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Get returns the documents with the given ids, in the order requested.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			docs = append(docs, clone(doc))
		}
	}
	return docs, nil
}

// List returns every document in insertion order.
func (d *Driver) List(_ context.Context) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(d.order))
	for _, id := range d.order {
		docs = append(docs, clone(d.docs[id]))
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func clone(doc vector.Document) vector.Document {
	doc.Embedding = slices.Clone(doc.Embedding)
	doc.Metadata = maps.Clone(doc.Metadata)
	return doc
}

var _ vector.Driver = (*Driver)(nil)
