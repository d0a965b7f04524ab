// Package nethttp implements httpclient.Client on top of net/http.
package nethttp

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/body"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

// Client sends requests with an *http.Client.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying *http.Client. Defaults to a client
// without a timeout, as event streams are long lived.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the zap logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send executes req. The returned response body is incremental and reads
// straight from the connection; it is released by closing it or by canceling
// ctx.
func (c *Client) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	hreq, err := newHTTPRequest(ctx, req)
	if err != nil {
		c.logger.Error("failed to build request",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("sending request",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)

	resp, err := c.http.Do(hreq)
	if err != nil {
		c.logger.Error("request failed",
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, fmt.Errorf("sending request: %w", err)
	}

	c.logger.Info("received response",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
	)

	return &httpclient.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body.FromReader(resp.Body),
	}, nil
}

// CloseIdleConnections closes idle keep-alive connections of the underlying
// client.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// newHTTPRequest converts req to an *http.Request. Buffered bodies carry a
// content length; incremental bodies are sent chunked through the blocking
// bridge of body.Body.
func newHTTPRequest(ctx context.Context, req *httpclient.Request) (*http.Request, error) {
	var reader io.Reader
	if !req.Body.IsEmpty() {
		reader = req.Body
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", httpclient.ErrBuildRequest, err)
	}

	if req.Body.Kind() == body.KindBuffered {
		hreq.ContentLength = int64(req.Body.Len())
		if hreq.ContentLength == 0 {
			hreq.Body = http.NoBody
		}
	}

	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}

	return hreq, nil
}
