// Package relay provides an event stream relay: every client GET is answered
// by streaming the matching upstream event source back verbatim while each
// parsed fragment is published to an optional eventstream.Publisher.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
	"github.com/papercomputeco/eventsource/pkg/httpclient/nethttp"
	"github.com/papercomputeco/eventsource/pkg/sse"
	"github.com/papercomputeco/eventsource/relay/header"
	"github.com/papercomputeco/eventsource/relay/worker"
)

// shutdownTimeout bounds how long Close waits for client connections to drain
// once every relayed stream has been ended.
const shutdownTimeout = 5 * time.Second

// errorResponse is the JSON body of relay failures.
type errorResponse struct {
	Error string `json:"error"`
}

// Relay forwards event streams from an upstream event source to clients.
type Relay struct {
	config        Config
	client        httpclient.Client
	workerPool    *worker.Pool
	logger        *zap.Logger
	server        *fiber.App
	headerHandler *header.Handler

	mu      sync.Mutex
	streams map[*sse.Stream]struct{}
	closing bool
}

// New creates a new Relay.
func New(config Config, logger *zap.Logger) (*Relay, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream url is required")
	}

	client := config.Client
	if client == nil {
		client = nethttp.New(nethttp.WithLogger(logger))
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = DefaultKeepAliveInterval
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config:        config,
		client:        client,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		streams:       make(map[*sse.Stream]struct{}),
	}

	if config.Publisher != nil {
		wp, err := worker.NewPool(&worker.Config{
			Publisher: config.Publisher,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		r.workerPool = wp
	}

	app.Get("/*", r.handleRelay)

	return r, nil
}

// Run starts the relay server on the configured listening address
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", r.config.UpstreamURL),
	)

	return r.server.Listener(listener)
}

// Close ends every relayed stream, shuts the server down, then waits for
// queued fragments to be published. Requests arriving meanwhile get 503.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closing = true
	streams := make([]*sse.Stream, 0, len(r.streams))
	for s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()

	// A closed stream makes its pump end the chunked response, which lets
	// the connection go idle.
	for _, s := range streams {
		_ = s.Close()
	}

	err := r.server.ShutdownWithTimeout(shutdownTimeout)
	if r.workerPool != nil {
		_ = r.workerPool.Close()
	}
	return err
}

// track registers a live stream. It reports false once Close has begun.
func (r *Relay) track(s *sse.Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return false
	}
	r.streams[s] = struct{}{}
	return true
}

func (r *Relay) untrack(s *sse.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, s)
}

// upstreamStart is the outcome of the upstream exchange, reported once.
type upstreamStart struct {
	status int
	header http.Header
	err    error
}

// handleRelay opens a stream against the upstream and, once the upstream has
// answered 200, streams its raw body to the client through a pipe.
func (r *Relay) handleRelay(c *fiber.Ctx) error {
	upstreamURL := strings.TrimSuffix(r.config.UpstreamURL, "/") + c.Path()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	b := httpclient.NewRequestBuilder(http.MethodGet, upstreamURL)
	r.headerHandler.SetUpstreamRequestHeaders(c, b)
	req, err := b.End()
	if err != nil {
		r.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	started := make(chan upstreamStart, 1)
	var once sync.Once
	report := func(s upstreamStart) {
		once.Do(func() { started <- s })
	}

	// Capture the upstream headers on the way through; the observer only
	// sees the status.
	var respHeader http.Header
	client := httpclient.ClientFunc(func(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
		resp, err := r.client.Send(ctx, req)
		if err == nil {
			respHeader = resp.Header
		}
		return resp, err
	})

	// Use io.Pipe + SetBodyStream so pw.Write blocks until fasthttp has
	// flushed the previous chunk to the client.
	pr, pw := io.Pipe()
	out := newClientWriter(pw)

	obs := &startObserver{
		Observer: sse.NewLogObserver(r.logger),
		started: func(status int) {
			report(upstreamStart{status: status, header: respHeader})
		},
	}

	// context.Background() because fasthttp recycles its RequestCtx once the
	// handler returns while the stream keeps running.
	s := sse.Open(context.Background(), client, req, sse.WithObserver(obs), sse.WithTee(out))
	if !r.track(s) {
		_ = s.Close()
		_ = pr.Close()
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: "relay is shutting down"})
	}

	done := make(chan struct{})
	go r.pump(s, pw, upstreamURL, report, done)

	start := <-started
	if errors.Is(start.err, sse.Done) {
		// Closed by Close before the upstream answered.
		_ = pr.Close()
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: "relay is shutting down"})
	}
	if start.err != nil {
		_ = pr.Close()
		r.logger.Error("upstream request failed", zap.String("url", upstreamURL), zap.Error(start.err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}
	if start.status != http.StatusOK {
		_ = s.Close()
		_ = pr.Close()
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{
			Error: fmt.Sprintf("upstream returned status %d %s", start.status, http.StatusText(start.status)),
		})
	}

	r.headerHandler.SetClientResponseHeaders(c, &httpclient.Response{Header: start.header})
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	go r.keepAlive(s, out, done)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	// fasthttp closes the body once the client connection fails, which ends
	// the upstream stream too.
	c.Context().Response.SetBodyStream(&clientBody{pr: pr, stream: s}, -1)

	return nil
}

// pump drains s, publishing every fragment. The raw bytes reach the client
// through the tee on pw. done is closed on return.
func (r *Relay) pump(s *sse.Stream, pw *io.PipeWriter, upstreamURL string, report func(upstreamStart), done chan<- struct{}) {
	defer close(done)
	defer r.untrack(s)
	defer s.Close()

	var emitter *eventstream.Emitter
	if r.workerPool != nil {
		emitter = eventstream.NewEmitter(r.workerPool, eventstream.EventSource{
			StreamID: s.ID(),
			URL:      upstreamURL,
		})
	}

	for {
		f, err := s.Next()
		if errors.Is(err, sse.Done) {
			report(upstreamStart{err: err})
			_ = pw.Close()
			return
		}
		if err != nil {
			var statusErr *sse.StatusError
			if !errors.As(err, &statusErr) {
				report(upstreamStart{err: err})
			}
			if errors.Is(err, io.ErrClosedPipe) {
				r.logger.Debug("client went away", zap.String("stream_id", s.ID()))
			}
			_ = pw.CloseWithError(err)
			return
		}

		if emitter != nil {
			if err := emitter.Emit(context.Background(), f); err != nil {
				r.logger.Warn("fragment not published", zap.String("stream_id", s.ID()), zap.Error(err))
			}
		}
	}
}

// keepAlive sends a comment line to the client whenever the upstream has been
// silent for the keepalive interval, so a vanished client is noticed even
// when no events flow.
func (r *Relay) keepAlive(s *sse.Stream, out *clientWriter, done <-chan struct{}) {
	ticker := time.NewTicker(r.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := out.keepAlive(r.config.KeepAliveInterval); err != nil {
				r.logger.Debug("client went away", zap.String("stream_id", s.ID()), zap.Error(err))
				_ = s.Close()
				return
			}
		}
	}
}

// clientBody is the response body handed to fasthttp. Closing it ends the
// stream feeding it.
type clientBody struct {
	pr     *io.PipeReader
	stream *sse.Stream
}

func (b *clientBody) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

func (b *clientBody) Close() error {
	_ = b.stream.Close()
	return b.pr.Close()
}

// startObserver reports the upstream status as soon as it is known.
type startObserver struct {
	sse.Observer
	started func(status int)
}

// ForStream scopes the wrapped observer to the stream.
func (o *startObserver) ForStream(id string) sse.Observer {
	if scoped, ok := o.Observer.(interface{ ForStream(string) sse.Observer }); ok {
		o.Observer = scoped.ForStream(id)
	}
	return o
}

func (o *startObserver) ResponseReceived(status int) {
	o.Observer.ResponseReceived(status)
	o.started(status)
}
