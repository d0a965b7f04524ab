package sse_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/papercomputeco/eventsource/pkg/body"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
	"github.com/papercomputeco/eventsource/pkg/sse"
)

var errBoom = errors.New("boom")

// sliceSource hands out fixed chunks, then err (io.EOF when nil).
type sliceSource struct {
	chunks [][]byte
	err    error
	pulls  int
}

func (s *sliceSource) Next(context.Context) ([]byte, error) {
	s.pulls++
	if len(s.chunks) == 0 {
		if s.err != nil {
			err := s.err
			s.err = io.EOF
			return nil, err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

// split cuts data into pieces of at most n bytes.
func split(data string, n int) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		k := min(n, len(data))
		out = append(out, []byte(data[:k]))
		data = data[k:]
	}
	return out
}

// readAllLines drains r.
func readAllLines(r *sse.LineReader) ([]string, error) {
	var lines []string
	for {
		line, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

// trackingReader serves parts one per Read and records reads and closes.
// Once the parts run out it returns err, or io.EOF when err is nil. When
// block is set it waits for Close instead of ending.
type trackingReader struct {
	mu     sync.Mutex
	parts  []string
	err    error
	block  bool
	reads  int
	closed bool
	closeC chan struct{}
}

func newTrackingReader(parts ...string) *trackingReader {
	return &trackingReader{parts: parts, closeC: make(chan struct{})}
}

func (r *trackingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	r.reads++
	if len(r.parts) > 0 {
		n := copy(p, r.parts[0])
		r.parts[0] = r.parts[0][n:]
		if r.parts[0] == "" {
			r.parts = r.parts[1:]
		}
		r.mu.Unlock()
		return n, nil
	}
	block, err := r.block, r.err
	r.mu.Unlock()

	if block {
		<-r.closeC
		return 0, io.ErrClosedPipe
	}
	if err != nil {
		return 0, err
	}
	return 0, io.EOF
}

func (r *trackingReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.closeC)
	}
	return nil
}

func (r *trackingReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *trackingReader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// fakeTransport answers every request with a canned response or error and
// remembers what it was asked.
type fakeTransport struct {
	status int
	src    *trackingReader
	err    error

	calls   int
	request *httpclient.Request
	ctx     context.Context
}

func (t *fakeTransport) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	t.calls++
	t.request = req
	t.ctx = ctx
	if t.err != nil {
		return nil, t.err
	}
	return &httpclient.Response{
		StatusCode: t.status,
		Body:       body.FromReader(t.src),
	}, nil
}

// recordingObserver keeps every notification.
type recordingObserver struct {
	opened    []string
	statuses  []int
	fragments []sse.Fragment
	skipped   []string
	partial   [][]byte
	closed    []error
}

func (o *recordingObserver) StreamOpened(id string, _ *httpclient.Request) {
	o.opened = append(o.opened, id)
}
func (o *recordingObserver) ResponseReceived(status int) { o.statuses = append(o.statuses, status) }
func (o *recordingObserver) FragmentParsed(f sse.Fragment) {
	o.fragments = append(o.fragments, f)
}
func (o *recordingObserver) LineSkipped(line string)       { o.skipped = append(o.skipped, line) }
func (o *recordingObserver) PartialLineDiscarded(b []byte) { o.partial = append(o.partial, b) }
func (o *recordingObserver) StreamClosed(err error)        { o.closed = append(o.closed, err) }

// collect drains s until Done, returning fragments and the errors seen.
func collect(s *sse.Stream) ([]sse.Fragment, []error) {
	var frags []sse.Fragment
	var errs []error
	for {
		f, err := s.Next()
		if errors.Is(err, sse.Done) {
			return frags, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		frags = append(frags, f)
	}
}
