package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/eventsource/pkg/sse"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeFragmentParsed is emitted for every fragment read from an event source.
	EventTypeFragmentParsed = "eventsource.fragment.parsed"
)

// FragmentEvent is a transport-neutral event payload for a parsed fragment.
type FragmentEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Sequence      uint64      `json:"sequence"`
	Kind          string      `json:"kind"`
	Value         string      `json:"value"`
}

// EventSource identifies the stream a fragment was read from.
type EventSource struct {
	StreamID string `json:"stream_id"`
	URL      string `json:"url"`
}

// NewFragmentEvent builds the event for the seq-th fragment of a stream.
func NewFragmentEvent(source EventSource, seq uint64, f sse.Fragment) *FragmentEvent {
	return &FragmentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeFragmentParsed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Sequence:      seq,
		Kind:          f.Kind.String(),
		Value:         f.Value,
	}
}
