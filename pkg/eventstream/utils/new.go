// Package eventstreamutils builds publishers by provider name.
package eventstreamutils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/embedsvc/pkg/eventstream"
	"github.com/papercomputeco/embedsvc/pkg/eventstream/kafka"
	"github.com/papercomputeco/embedsvc/pkg/eventstream/nop"
	"github.com/papercomputeco/embedsvc/pkg/eventstream/worker"
)

type NewPublisherOpts struct {
	ProviderType string

	// Brokers is a comma separated broker list.
	Brokers string
	Topic   string
	Logger  *slog.Logger
}

// NewPublisher returns a no-op publisher for "none" and otherwise wraps the
// backend in an asynchronous worker pool.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	var backend eventstream.Publisher

	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(o.Brokers),
			Topic:   o.Topic,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		backend = p
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.ProviderType)
	}

	return worker.NewPool(&worker.Config{
		Publisher: backend,
		Logger:    o.Logger,
	})
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
