package vector

import "errors"

var (
	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimensionality of the collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
