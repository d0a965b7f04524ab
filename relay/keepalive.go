package relay

import (
	"io"
	"sync"
	"time"
)

// DefaultKeepAliveInterval is how long a relayed stream may stay silent before
// a comment line is written to the client.
const DefaultKeepAliveInterval = 15 * time.Second

var keepAliveComment = []byte(":\n")

// clientWriter serializes writes to the client pipe and remembers whether the
// last write ended a line, so a keepalive comment never splits one.
type clientWriter struct {
	mu        sync.Mutex
	w         io.Writer
	lineStart bool
	last      time.Time
}

func newClientWriter(w io.Writer) *clientWriter {
	return &clientWriter{w: w, lineStart: true, last: time.Now()}
}

func (cw *clientWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	n, err := cw.w.Write(p)
	if n > 0 {
		cw.lineStart = p[n-1] == '\n'
		cw.last = time.Now()
	}
	return n, err
}

// keepAlive writes a comment line if nothing was written for idle and the
// client sits on a line boundary.
func (cw *clientWriter) keepAlive(idle time.Duration) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.lineStart || time.Since(cw.last) < idle {
		return nil
	}
	if _, err := cw.w.Write(keepAliveComment); err != nil {
		return err
	}
	cw.last = time.Now()
	return nil
}
