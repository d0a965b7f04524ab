// Package httpclient defines the transport capability the event source is
// built on: anything that can exchange a Request for a Response. It also
// carries the small request-building and response-reading helpers used by
// callers that do not need the SSE pipeline.
//
// Concrete transports live in subpackages (see nethttp).
package httpclient

import (
	"context"
	"net/http"

	"github.com/papercomputeco/eventsource/pkg/body"
)

// Client sends a Request and returns the Response.
//
// Implementations must keep an incremental response Body readable for as long
// as the caller holds it, and must release everything tied to the exchange
// when ctx is canceled before Send returns.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f(ctx, req).
func (f ClientFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is an outgoing HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   *body.Body
}

// WithHeader returns a copy of r with value appended to the key header.
// The header map is copied; the Body is moved, not cloned, so r must not be
// sent after the copy has been.
func (r *Request) WithHeader(key, value string) *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	out.Header.Add(key, value)
	return &out
}

// Response is an HTTP response returned by a Client.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       *body.Body
}

// Close releases the response body.
func (r *Response) Close() error {
	return r.Body.Close()
}
