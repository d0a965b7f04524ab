// Package header provides header filtering for the eventsource relay.
//
// The relay sits between a client and an upstream event source like so:
//
//	Client <--> Relay <--> Upstream Event Source
//
// and headers are handled accordingly as each leg negotiates hops, encoding
// and content type independently.
package header

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of request headers (client --> relay --> upstream)
// that are not forwarded to the upstream event source.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Rewritten by the transport to match the upstream URL.
	"Host": {},

	// Stripped so that Go's http.Transport adds its own "Accept-Encoding: gzip"
	// and transparently decompresses the upstream body before it is parsed.
	"Accept-Encoding": {},

	// The stream negotiates text/event-stream itself.
	"Accept": {},

	// The relay only forwards body-less GET requests.
	"Content-Length": {},
}

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The relay always reads a decompressed body.
	"Content-Encoding": {},

	// The relayed body is streamed with an unknown length.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing request builder, filtering headers the relay should not forward
// to the upstream event source.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, b *httpclient.RequestBuilder) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[k]; !skip {
			b.Header(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the upstream
// response to the Fiber context, filtering headers that the relay should not
// forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *httpclient.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
