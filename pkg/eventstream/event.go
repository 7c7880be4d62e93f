package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentsAdded is emitted after an embed call stores documents.
	EventTypeDocumentsAdded = "embedsvc.documents.added"
)

// DocumentsAddedEvent is a transport-neutral event payload for a batch of
// documents added to a collection. Embeddings are not carried.
type DocumentsAddedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Collection    string    `json:"collection"`
	IDs           []string  `json:"ids"`
	Texts         []string  `json:"texts"`
	Total         int       `json:"total"`
}

// NewDocumentsAddedEvent stamps a new event for the given batch.
func NewDocumentsAddedEvent(collection string, ids, texts []string, total int) *DocumentsAddedEvent {
	return &DocumentsAddedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDocumentsAdded,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
		IDs:           ids,
		Texts:         texts,
		Total:         total,
	}
}
