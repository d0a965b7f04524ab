// Package sse provides an incremental Server-Sent Events (SSE) fragment
// parser on top of the body and httpclient packages.
//
// Every complete line of an event stream that carries a known field becomes
// one Fragment. Fragments are NOT grouped into events on blank lines; callers
// that need whole events assemble them from the fragment sequence.
//
//	Body ──▶ ChunkReader ──▶ LineReader ──▶ Parser ──▶ Stream.Next()
//
// Every stage pulls from the one before it only when asked for its next
// item, so a slow consumer never causes unbounded buffering.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Kind is the field a Fragment was parsed from.
type Kind int

const (
	// KindComment is a line starting with ":".
	KindComment Kind = iota + 1

	// KindData is a "data:" line.
	KindData

	// KindEvent is an "event:" line naming the event type.
	KindEvent

	// KindID is an "id:" line.
	KindID

	// KindRetry is a "retry:" line. The value is kept as text and is not
	// acted upon.
	KindRetry
)

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindData:
		return "data"
	case KindEvent:
		return "event"
	case KindID:
		return "id"
	case KindRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Fragment is one field parsed from a single SSE line.
type Fragment struct {
	Kind Kind

	// Value is the rest of the line after the field prefix, with leading
	// whitespace trimmed.
	Value string
}

// String renders f back into its wire form, without the line terminator.
func (f Fragment) String() string {
	if f.Kind == KindComment {
		if f.Value == "" {
			return ":"
		}
		return ": " + f.Value
	}
	return f.Kind.String() + ": " + f.Value
}
