// Package pgvector provides a PostgreSQL vector driver using the pgvector
// extension.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/embedsvc/pkg/vector"
)

// Driver implements vector.Driver on a single PostgreSQL table per collection.
type Driver struct {
	db         *sql.DB
	table      string
	dimensions int
	logger     *slog.Logger
}

// Config holds configuration for the pgvector driver.
type Config struct {
	// DSN is a PostgreSQL connection string.
	DSN string

	// CollectionName becomes the table name.
	CollectionName string

	Dimensions uint
}

// NewDriver opens the database, enables the vector extension and creates the
// collection table if needed.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if c.CollectionName == "" {
		return nil, fmt.Errorf("pgvector collection name is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("pgx", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %w", vector.ErrConnection, err)
	}

	d := &Driver{
		db:         db,
		table:      TableName(c.CollectionName),
		dimensions: int(c.Dimensions),
		logger:     logger,
	}

	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("pgvector vector driver initialized",
		"table", d.table,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

// TableName returns the quoted table identifier used for a collection.
func TableName(collection string) string {
	return pgx.Identifier{strings.ToLower(collection)}.Sanitize()
}

func (d *Driver) migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)
	`, d.table, d.dimensions))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", d.table, err)
	}
	return nil
}

// Add upserts documents in a single transaction.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, text, metadata, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`, d.table)

	for _, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("%w: document %s has %d dimensions, table has %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dimensions)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			doc.ID, doc.Text, string(metadata), pgvector.NewVector(doc.Embedding),
		); err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to pgvector", "count", len(docs))

	return nil
}

// Query orders by the <-> (L2) operator and squares the distance to line up
// with the other drivers.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	results := []vector.QueryResult{}
	if topK <= 0 {
		return results, nil
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, text, metadata, embedding, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance, seq
		LIMIT $2
	`, d.table), pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc      vector.Document
			metadata []byte
			emb      pgvector.Vector
			distance float64
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &emb, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
		doc.Embedding = emb.Slice()

		results = append(results, vector.QueryResult{
			Document: doc,
			Distance: float32(distance * distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	return results, nil
}

// Get retrieves documents by id in request order, skipping unknown ids.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	docs, err := d.selectDocuments(ctx, fmt.Sprintf(`WHERE id IN (%s)`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]vector.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	ordered := make([]vector.Document, 0, len(docs))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
		}
	}
	return ordered, nil
}

// List returns every document in insertion order.
func (d *Driver) List(ctx context.Context) ([]vector.Document, error) {
	return d.selectDocuments(ctx, "")
}

// Count returns the number of rows in the collection table.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, d.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

func (d *Driver) selectDocuments(ctx context.Context, where string, args ...any) ([]vector.Document, error) {
	rows, err := d.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, text, metadata, embedding FROM %s %s ORDER BY seq`, d.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []vector.Document{}
	for rows.Next() {
		var (
			doc      vector.Document
			metadata []byte
			emb      pgvector.Vector
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &emb); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
		doc.Embedding = emb.Slice()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Close closes the database pool.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
