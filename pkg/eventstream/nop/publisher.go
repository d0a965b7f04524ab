package nop

import (
	"context"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishFragment validates input and otherwise does nothing.
func (p *Publisher) PublishFragment(_ context.Context, event *eventstream.FragmentEvent) error {
	if event == nil {
		return eventstream.ErrNilFragmentEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
