package eventstream

import "context"

// Publisher publishes document events to an event stream backend.
type Publisher interface {
	PublishDocumentsAdded(ctx context.Context, event *DocumentsAddedEvent) error
	Close() error
}
