package relay

import (
	"time"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// UpstreamURL is the base URL of the upstream event source
	// (e.g., "http://localhost:8080"). Request paths are appended to it.
	UpstreamURL string

	// Client is the transport used to reach the upstream. Defaults to a
	// net/http client.
	Client httpclient.Client

	// Publisher is an optional backend that receives every relayed fragment.
	// If nil, fragments are not published.
	Publisher eventstream.Publisher

	// KeepAliveInterval is how long a relayed stream may stay silent before
	// a ":" comment line is sent to the client. Zero means
	// DefaultKeepAliveInterval.
	KeepAliveInterval time.Duration
}
