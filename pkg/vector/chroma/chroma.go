// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/papercomputeco/embedsvc/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name.
	DefaultCollectionName = "test-products"

	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// MaxRetries is the number of attempts made to reach Chroma and resolve
	// the collection at startup.
	MaxRetries int

	// RetryDelay and MaxRetryDelay bound the exponential backoff between
	// startup attempts.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// HTTPClient overrides the default client (60s timeout).
	HTTPClient *http.Client
}

// NewDriver connects to Chroma and gets or creates the configured collection,
// retrying with backoff while the server comes up.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := c.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxRetryDelay := c.MaxRetryDelay
	if maxRetryDelay < retryDelay {
		maxRetryDelay = max(defaultMaxRetryDelay, retryDelay)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	d := &Driver{
		baseURL:        strings.TrimRight(c.URL, "/"),
		collectionName: collectionName,
		httpClient:     httpClient,
		logger:         logger,
	}

	policy := retrypolicy.Builder[string]().
		WithBackoff(retryDelay, maxRetryDelay).
		WithMaxRetries(maxRetries - 1).
		Build()

	ctx := context.Background()
	attempt := 0
	collectionID, err := failsafe.Get(func() (string, error) {
		attempt++
		id, err := d.getOrCreateCollection(ctx)
		if err != nil {
			logger.Warn("chroma not ready",
				"attempt", attempt,
				"max_attempts", maxRetries,
				"error", err,
			)
		}
		return id, err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q after %d attempts: %w",
			vector.ErrConnection, collectionName, attempt, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", collectionID,
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	status, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+d.collectionName, nil, &collection)
	if err == nil {
		return collection.ID, nil
	}
	if status == 0 {
		return "", err
	}

	if _, err := d.do(ctx, http.MethodPost, collectionsPath, map[string]string{"name": d.collectionName}, &collection); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return collection.ID, nil
}

// Add upserts documents with their embeddings, texts and metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaAddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
		req.Documents[i] = doc.Text
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))

	return nil
}

// Query finds the topK nearest documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances", "embeddings"},
	}

	var resp chromaQueryResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("query"), req, &resp); err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	results := []vector.QueryResult{}

	// Only one query embedding is sent, so only the first group matters.
	if len(resp.IDs) == 0 {
		return results, nil
	}

	docs := toDocuments(resp.IDs[0], first(resp.Documents), first(resp.Metadatas), first(resp.Embeddings))
	distances := first(resp.Distances)
	for i, doc := range docs {
		result := vector.QueryResult{Document: doc}
		if i < len(distances) {
			result.Distance = distances[i]
		}
		results = append(results, result)
	}

	d.logger.Debug("queried chroma", "results", len(results))

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.get(ctx, ids)
}

// List returns every document in the collection.
func (d *Driver) List(ctx context.Context) ([]vector.Document, error) {
	return d.get(ctx, nil)
}

func (d *Driver) get(ctx context.Context, ids []string) ([]vector.Document, error) {
	req := chromaGetRequest{
		IDs:     ids,
		Include: []string{"documents", "metadatas", "embeddings"},
	}

	var resp chromaGetResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("get"), req, &resp); err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	return toDocuments(resp.IDs, resp.Documents, resp.Metadatas, resp.Embeddings), nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var count int
	if _, err := d.do(ctx, http.MethodGet, d.collectionPath("count"), nil, &count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// do sends a JSON request to Chroma and decodes a JSON response into out when
// out is non-nil. The returned status is 0 when no response was received.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func toDocuments(ids []string, texts []*string, metadatas []map[string]any, embeddings [][]float32) []vector.Document {
	docs := make([]vector.Document, len(ids))
	for i, id := range ids {
		docs[i].ID = id
		if i < len(texts) && texts[i] != nil {
			docs[i].Text = *texts[i]
		}
		if i < len(metadatas) {
			docs[i].Metadata = metadatas[i]
		}
		if i < len(embeddings) {
			docs[i].Embedding = embeddings[i]
		}
		if docs[i].Text == "" {
			docs[i].Text = vector.TextFromMetadata(docs[i].Metadata, "")
		}
	}
	return docs
}

func first[T any](groups [][]T) []T {
	if len(groups) == 0 {
		return nil
	}
	return groups[0]
}

var _ vector.Driver = (*Driver)(nil)
