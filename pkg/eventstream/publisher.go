package eventstream

import (
	"context"

	"github.com/papercomputeco/eventsource/pkg/sse"
)

// Publisher publishes fragment events to an event stream backend.
type Publisher interface {
	PublishFragment(ctx context.Context, event *FragmentEvent) error
	Close() error
}

// Emitter numbers the fragments of one stream and publishes them.
// It is not safe for concurrent use.
type Emitter struct {
	pub    Publisher
	source EventSource
	seq    uint64
}

// NewEmitter returns an Emitter publishing fragments of source to pub.
func NewEmitter(pub Publisher, source EventSource) *Emitter {
	return &Emitter{pub: pub, source: source}
}

// Emit publishes f as the next fragment of the stream.
func (e *Emitter) Emit(ctx context.Context, f sse.Fragment) error {
	e.seq++
	return e.pub.PublishFragment(ctx, NewFragmentEvent(e.source, e.seq, f))
}
