// Package body provides the HTTP message payload shared by requests and
// responses. A Body is in one of three states:
//
//   - empty: no payload at all, which is different from a zero-length payload
//   - buffered: an immutable byte slice read through a private cursor
//   - incremental: an io.Reader whose bytes arrive over time
//
// An incremental Body is consumed exactly once. It cannot be cloned, and it
// must not be read from two goroutines at the same time.
package body

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Kind reports which state a Body is in.
type Kind int

const (
	// KindEmpty is the absence of a payload.
	KindEmpty Kind = iota

	// KindBuffered is a payload held fully in memory.
	KindBuffered

	// KindIncremental is a payload read from an external source.
	KindIncremental
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBuffered:
		return "buffered"
	case KindIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// ErrCloneIncremental is the panic value raised by Clone on an incremental
// Body. Cloning one is a programming error, not a runtime condition.
var ErrCloneIncremental = errors.New("body: cannot clone an incremental body")

// maxEmptyReads bounds how many (0, nil) reads from a source are tolerated
// before giving up with io.ErrNoProgress, mirroring bufio.
const maxEmptyReads = 100

// Body is an HTTP message payload. The zero value and a nil *Body are both
// empty bodies.
type Body struct {
	kind Kind

	// buffered
	data []byte
	off  int

	// incremental
	src       io.Reader
	eof       bool
	pending   error
	closeOnce sync.Once
	closeErr  error
}

// Empty returns a Body that carries no payload.
func Empty() *Body {
	return &Body{kind: KindEmpty}
}

// FromBytes returns a buffered Body over b. The slice is shared with every
// clone and must not be modified afterwards.
func FromBytes(b []byte) *Body {
	return &Body{kind: KindBuffered, data: b}
}

// FromString returns a buffered Body holding s.
func FromString(s string) *Body {
	return FromBytes([]byte(s))
}

// FromReader returns an incremental Body reading from r. Ownership of r moves
// to the Body: Close closes r when it implements io.Closer.
func FromReader(r io.Reader) *Body {
	if r == nil {
		return Empty()
	}
	return &Body{kind: KindIncremental, src: r}
}

// Kind returns the state of b.
func (b *Body) Kind() Kind {
	if b == nil {
		return KindEmpty
	}
	return b.kind
}

// IsEmpty reports whether b carries no payload at all.
func (b *Body) IsEmpty() bool {
	return b.Kind() == KindEmpty
}

// Len returns the number of unread bytes of a buffered body, 0 for an empty
// body and -1 when the length of an incremental body is not known.
func (b *Body) Len() int {
	switch b.Kind() {
	case KindBuffered:
		return len(b.data) - b.off
	case KindIncremental:
		return -1
	default:
		return 0
	}
}

// ReadContext reads up to len(p) bytes into p. It returns 0, io.EOF once the
// payload is exhausted; an empty body reports io.EOF on the first call and a
// buffered body never blocks. Only an incremental body may block, waiting on
// its source. A done ctx fails the read before the source is touched.
func (b *Body) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch b.Kind() {
	case KindBuffered:
		if b.off >= len(b.data) {
			return 0, io.EOF
		}
		n := copy(p, b.data[b.off:])
		b.off += n
		return n, nil

	case KindIncremental:
		return b.readSource(p)

	default:
		return 0, io.EOF
	}
}

// readSource reads from the incremental source. An error that arrives along
// with data is held back and returned by the following read, so a positive
// count is never paired with an error.
func (b *Body) readSource(p []byte) (int, error) {
	if b.pending != nil {
		return 0, b.pending
	}
	if b.eof {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	for range maxEmptyReads {
		n, err := b.src.Read(p)
		if n > 0 {
			switch {
			case errors.Is(err, io.EOF):
				b.eof = true
			case err != nil:
				b.pending = err
			}
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			b.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
	}

	return 0, io.ErrNoProgress
}

// Read implements io.Reader on top of ReadContext.
//
// Read is a blocking bridge: the calling goroutine is held until the source
// produces data, so it must not be used where latency matters. It carries no
// context and can only be interrupted by closing the Body or its source.
func (b *Body) Read(p []byte) (int, error) {
	return b.ReadContext(context.Background(), p)
}

// Clone returns a copy of b that reads independently from the same bytes.
// Cloning an empty or buffered body is cheap. Cloning an incremental body
// panics with ErrCloneIncremental, as the source can only be read once.
func (b *Body) Clone() *Body {
	switch b.Kind() {
	case KindBuffered:
		return &Body{kind: KindBuffered, data: b.data, off: b.off}
	case KindIncremental:
		panic(ErrCloneIncremental)
	default:
		return Empty()
	}
}

// Close releases the source of an incremental body. It is a no-op for the
// other kinds. Only the first call reaches the source; Close may be called
// from another goroutine to unblock a pending read.
func (b *Body) Close() error {
	if b.Kind() != KindIncremental {
		return nil
	}
	b.closeOnce.Do(func() {
		if c, ok := b.src.(io.Closer); ok {
			b.closeErr = c.Close()
		}
	})
	return b.closeErr
}
