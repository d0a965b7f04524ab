package sse

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/eventsource/pkg/body"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

const (
	acceptHeader    = "Accept"
	eventStreamType = "text/event-stream"
)

// State is the lifecycle stage of a Stream.
type State int

const (
	// StateSending is the initial state; the request has not completed yet.
	StateSending State = iota

	// StateStreaming means a 200 response arrived and its body is being parsed.
	StateStreaming

	// StateDone is terminal. Next only returns Done from here on.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Option configures a Stream.
type Option func(*Stream)

// WithObserver attaches an Observer to the stream and its parser.
func WithObserver(o Observer) Option {
	return func(s *Stream) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTee copies the raw response body to w as it is parsed. See Tee.
func WithTee(w io.Writer) Option {
	return func(s *Stream) {
		s.tee = w
	}
}

// Stream is a pull-based sequence of fragments read from an event source.
// Call Next in a loop until it returns Done, and always call Close.
//
// The request is sent on the first call to Next. Only a status of 200 is
// accepted; the body of any other response is closed without being read.
// At most one error is ever returned, and it is always the last item.
type Stream struct {
	id       string
	client   httpclient.Client
	req      *httpclient.Request
	parent   context.Context
	observer Observer
	tee      io.Writer

	parser *Parser

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	state  State
	resp   *httpclient.Response
	closed bool
}

// Open prepares a Stream for req over client. Ownership of req.Body moves to
// the Stream. Canceling ctx aborts the exchange. Nothing is allocated against
// ctx until the first call to Next.
func Open(ctx context.Context, client httpclient.Client, req *httpclient.Request, opts ...Option) *Stream {
	s := &Stream{
		id:       uuid.NewString(),
		client:   client,
		req:      req,
		parent:   ctx,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if scoped, ok := s.observer.(streamScoped); ok {
		s.observer = scoped.ForStream(s.id)
	}

	return s
}

// ID returns the identifier used to correlate this stream in logs.
func (s *Stream) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the next fragment.
//
// It returns a *TransportError if the request could not be exchanged, a
// *StatusError for a non-200 response, or the read error if the body failed
// mid-stream. After the body ends cleanly, after an error, or after Close,
// Next returns Done.
func (s *Stream) Next() (Fragment, error) {
	switch s.State() {
	case StateDone:
		return Fragment{}, Done
	case StateSending:
		if err := s.send(); err != nil {
			if s.isClosed() {
				return Fragment{}, Done
			}
			s.finish(err)
			return Fragment{}, err
		}
	}

	f, err := s.parser.Next(s.ctx)
	if s.isClosed() {
		// Closed while the read was blocked; whatever the read returned is a
		// product of the close and is not reported.
		return Fragment{}, Done
	}
	if err == nil {
		return f, nil
	}

	if errors.Is(err, io.EOF) {
		s.finish(nil)
		return Fragment{}, Done
	}

	s.finish(err)
	return Fragment{}, err
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// send performs the exchange and, on a 200 response, builds the chunk, line
// and fragment pipeline over its body.
func (s *Stream) send() error {
	if s.req == nil {
		return &TransportError{Err: httpclient.ErrBuildRequest}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.mu.Unlock()

	req := s.req.WithHeader(acceptHeader, eventStreamType)
	s.observer.StreamOpened(s.id, req)

	resp, err := s.client.Send(s.ctx, req)
	if err != nil {
		return &TransportError{URL: req.URL, Err: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = resp.Close()
		return context.Canceled
	}
	s.resp = resp
	s.mu.Unlock()

	s.observer.ResponseReceived(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	b := resp.Body
	if s.tee != nil {
		b = Tee(b, s.tee)
	}
	s.parser = NewParser(NewLineReader(body.NewChunkReader(b)), s.observer)

	s.mu.Lock()
	if !s.closed {
		s.state = StateStreaming
	}
	s.mu.Unlock()

	return nil
}

// finish moves the stream to StateDone and releases the response.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	if s.state == StateDone {
		s.mu.Unlock()
		return
	}
	s.state = StateDone
	resp, cancel := s.resp, s.cancel
	s.mu.Unlock()

	s.observer.StreamClosed(err)
	if resp != nil {
		_ = resp.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// Close ends the stream: a pending send is canceled and the response body is
// closed. A Next blocked on the body returns Done. Close is safe to call more
// than once and from another goroutine.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasDone := s.state == StateDone
	s.state = StateDone
	resp, cancel := s.resp, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasDone {
		s.observer.StreamClosed(nil)
	}
	if resp != nil {
		return resp.Close()
	}
	return nil
}

// All returns the remaining fragments as a sequence. The stream is closed
// when the sequence ends or the consumer stops ranging.
func (s *Stream) All() iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		defer s.Close()
		for {
			f, err := s.Next()
			if errors.Is(err, Done) {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// Fragments opens a Stream for req and returns its fragments as a sequence.
//
//	for f, err := range sse.Fragments(ctx, client, req) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(f)
//	}
func Fragments(ctx context.Context, client httpclient.Client, req *httpclient.Request, opts ...Option) iter.Seq2[Fragment, error] {
	return Open(ctx, client, req, opts...).All()
}
