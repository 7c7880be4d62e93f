package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/embedsvc/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentsAddedEvent
	closed bool

	// Err is returned from every publish when set.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishDocumentsAdded(_ context.Context, event *eventstream.DocumentsAddedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []*eventstream.DocumentsAddedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.DocumentsAddedEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
