package sse

import (
	"io"

	"github.com/papercomputeco/eventsource/pkg/body"
)

// Tee returns an incremental body that reads from src while writing every
// byte read, verbatim, to dest.
//
// ┌──────────────────┐
// │ source body.Body │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │       Tee        │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Parser      │
// └──────────────────┘
//
// The destination sees the exact upstream framing, blank lines and
// unrecognized fields included, while the caller inspects parsed fragments.
// A failed write ends the stream with that error. Closing the returned body
// closes src.
func Tee(src *body.Body, dest io.Writer) *body.Body {
	return body.FromReader(&teeSource{src: src, dest: dest})
}

type teeSource struct {
	src  *body.Body
	dest io.Writer
}

func (t *teeSource) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		if _, werr := t.dest.Write(p[:n]); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (t *teeSource) Close() error {
	return t.src.Close()
}
