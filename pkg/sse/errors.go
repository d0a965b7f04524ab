package sse

import (
	"errors"
	"fmt"
)

// Done is returned by Stream.Next once the event stream has ended, either
// cleanly or after a failure was reported. Check with errors.Is(err, sse.Done).
var Done = errors.New("sse: no more fragments")

// StatusError is returned when the event source answers with a status other
// than 200 OK. The response body is never read in that case.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sse: event source %s returned non-200 status: %d", e.URL, e.StatusCode)
}

// TransportError wraps a failure of the transport to complete the exchange.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sse: sending request to %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
