package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil documents added event")

	// ErrQueueFull is returned by the async publisher when an event is dropped.
	ErrQueueFull = errors.New("event queue full")
)
