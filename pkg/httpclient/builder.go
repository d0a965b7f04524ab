package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpguts"

	"github.com/papercomputeco/eventsource/pkg/body"
)

// ErrBuildRequest indicates a request that cannot be finalized, e.g. an
// invalid header or an unencodable payload. It is returned, never panicked.
var ErrBuildRequest = errors.New("httpclient: cannot build request")

// RequestBuilder assembles a Request. The first invalid input is remembered
// and reported by the finishing call (End, Body or JSON).
type RequestBuilder struct {
	method string
	url    string
	header http.Header
	err    error
}

// NewRequestBuilder starts a request for method and rawURL.
func NewRequestBuilder(method, rawURL string) *RequestBuilder {
	b := &RequestBuilder{
		method: method,
		url:    rawURL,
		header: make(http.Header),
	}

	if method == "" || !httpguts.ValidHeaderFieldName(method) {
		b.fail(fmt.Errorf("invalid method %q", method))
	}
	if _, err := url.Parse(rawURL); err != nil {
		b.fail(fmt.Errorf("invalid url: %w", err))
	}

	return b
}

// Header adds a header value.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	if !httpguts.ValidHeaderFieldName(key) {
		b.fail(fmt.Errorf("invalid header name %q", key))
		return b
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		b.fail(fmt.Errorf("invalid value for header %q", key))
		return b
	}
	b.header.Add(key, value)
	return b
}

// Headers replaces the values of every key present in h.
func (b *RequestBuilder) Headers(h http.Header) *RequestBuilder {
	for key, values := range h {
		b.header.Del(key)
		for _, v := range values {
			b.Header(key, v)
		}
	}
	return b
}

// End finishes the request without a body.
func (b *RequestBuilder) End() (*Request, error) {
	return b.Body(body.Empty())
}

// Body finishes the request with the given body.
func (b *RequestBuilder) Body(bd *body.Body) (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if bd == nil {
		bd = body.Empty()
	}
	return &Request{
		Method: b.method,
		URL:    b.url,
		Header: b.header.Clone(),
		Body:   bd,
	}, nil
}

// JSON finishes the request with payload encoded as JSON and sets the
// Content-Type header unless one was already given.
func (b *RequestBuilder) JSON(payload any) (*Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.fail(fmt.Errorf("encoding json payload: %w", err))
		return nil, b.err
	}
	if b.header.Get("Content-Type") == "" {
		b.header.Set("Content-Type", "application/json")
	}
	return b.Body(body.FromBytes(data))
}

func (b *RequestBuilder) fail(err error) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}
}
