// Package vectorutils builds vector.Driver implementations by provider name.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/embedsvc/pkg/vector"
	"github.com/papercomputeco/embedsvc/pkg/vector/chroma"
	"github.com/papercomputeco/embedsvc/pkg/vector/memory"
	"github.com/papercomputeco/embedsvc/pkg/vector/pgvector"
	"github.com/papercomputeco/embedsvc/pkg/vector/qdrant"
	"github.com/papercomputeco/embedsvc/pkg/vector/sqlitevec"
)

// Providers lists the supported vector store providers.
var Providers = []string{"memory", "chroma", "sqlite", "qdrant", "pgvector"}

type NewVectorDriverOpts struct {
	ProviderType   string
	Target         string
	CollectionName string
	Dimensions     uint
	Logger         *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", "memory":
		return memory.NewDriver(o.Logger), nil
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.CollectionName,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:         o.Target,
			CollectionName: o.CollectionName,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			DSN:            o.Target,
			CollectionName: o.CollectionName,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
