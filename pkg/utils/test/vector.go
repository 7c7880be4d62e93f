package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/embedsvc/pkg/logger"
	"github.com/papercomputeco/embedsvc/pkg/vector"
	"github.com/papercomputeco/embedsvc/pkg/vector/memory"
)

// ErrMockVector is returned by MockVectorDriver operations that are set to fail.
var ErrMockVector = errors.New("mock vector store failure")

// MockVectorDriver is a test vector driver backed by the in-memory driver,
// with switches to force failures.
type MockVectorDriver struct {
	*memory.Driver

	mu        sync.Mutex
	FailAdd   bool
	FailQuery bool
	FailCount bool
	FailList  bool
	Closed    bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Driver: memory.NewDriver(logger.Nop()),
	}
}

func (m *MockVectorDriver) Add(ctx context.Context, docs []vector.Document) error {
	if m.fail(&m.FailAdd) {
		return ErrMockVector
	}
	return m.Driver.Add(ctx, docs)
}

func (m *MockVectorDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if m.fail(&m.FailQuery) {
		return nil, ErrMockVector
	}
	return m.Driver.Query(ctx, embedding, topK)
}

func (m *MockVectorDriver) Count(ctx context.Context) (int, error) {
	if m.fail(&m.FailCount) {
		return 0, ErrMockVector
	}
	return m.Driver.Count(ctx)
}

func (m *MockVectorDriver) List(ctx context.Context) ([]vector.Document, error) {
	if m.fail(&m.FailList) {
		return nil, ErrMockVector
	}
	return m.Driver.List(ctx)
}

func (m *MockVectorDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockVectorDriver) fail(flag *bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *flag
}

var _ vector.Driver = (*MockVectorDriver)(nil)
