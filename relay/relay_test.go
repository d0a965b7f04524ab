package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
	"github.com/papercomputeco/eventsource/pkg/logger"
)

// memoryPublisher records every published event.
type memoryPublisher struct {
	mu     sync.Mutex
	events []*eventstream.FragmentEvent
}

func (m *memoryPublisher) PublishFragment(_ context.Context, event *eventstream.FragmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryPublisher) Close() error { return nil }

func (m *memoryPublisher) Events() []*eventstream.FragmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.FragmentEvent(nil), m.events...)
}

// seenRequest is what the upstream test server was asked for.
type seenRequest struct {
	path   string
	query  string
	accept []string
	lastID string
}

func newTestRelay(upstreamURL string, pub eventstream.Publisher) *Relay {
	r, err := New(Config{
		ListenAddr:  ":0",
		UpstreamURL: upstreamURL,
		Publisher:   pub,
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return r
}

// serveRelay runs r on a loopback listener and returns its address.
func serveRelay(r *Relay) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go func() {
		_ = r.RunWithListener(ln)
	}()
	return ln.Addr().String()
}

// dialStream requests path from the relay at addr over a raw connection and
// reads until the line want arrives.
func dialStream(addr, path, want string) (net.Conn, *bufio.Reader) {
	conn, err := net.Dial("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	Expect(conn.SetDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	_, err = fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\nAccept: text/event-stream\r\n\r\n", path, addr)
	Expect(err).NotTo(HaveOccurred())

	br := bufio.NewReader(conn)
	readLine(br, want)
	return conn, br
}

// readLine reads from br until a line equal to want arrives.
func readLine(br *bufio.Reader, want string) {
	for {
		line, err := br.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		if strings.TrimRight(line, "\r\n") == want {
			return
		}
	}
}

var _ = Describe("Relay", func() {
	var (
		r        *Relay
		upstream *httptest.Server
		pub      *memoryPublisher
		seen     chan seenRequest
	)

	const stream = "retry: 1000\n\n: hello\nevent: update\ndata: {\"n\":1}\n\nid: 7\ndata: two\n\n"

	BeforeEach(func() {
		pub = &memoryPublisher{}
		seen = make(chan seenRequest, 1)
	})

	AfterEach(func() {
		if r != nil {
			_ = r.Close()
			r = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Context("when the upstream streams events", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				seen <- seenRequest{
					path:   req.URL.Path,
					query:  req.URL.RawQuery,
					accept: req.Header.Values("Accept"),
					lastID: req.Header.Get("Last-Event-ID"),
				}
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("X-Upstream", "yes")
				flusher := w.(http.Flusher)
				for _, part := range []string{stream[:20], stream[20:45], stream[45:]} {
					fmt.Fprint(w, part)
					flusher.Flush()
				}
			}))
			r = newTestRelay(upstream.URL, pub)
		})

		It("relays the raw upstream bytes", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/events?topic=a", nil)
			req.Header.Set("Last-Event-ID", "6")

			resp, err := r.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
			Expect(resp.Header.Get("X-Upstream")).To(Equal("yes"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(stream))

			var got seenRequest
			Eventually(seen).Should(Receive(&got))
			Expect(got.path).To(Equal("/v1/events"))
			Expect(got.query).To(Equal("topic=a"))
			Expect(got.accept).To(Equal([]string{"text/event-stream"}))
			Expect(got.lastID).To(Equal("6"))
		})

		It("publishes every parsed fragment in order", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/events", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			_, err = io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			// Drain the worker pool so async publishing completes.
			Expect(r.Close()).To(Succeed())
			r = nil

			events := pub.Events()
			Expect(events).To(HaveLen(6))

			kinds := make([]string, len(events))
			values := make(map[uint64]string, len(events))
			for i, e := range events {
				kinds[i] = e.Kind
				values[e.Sequence] = e.Value
				Expect(e.Source.URL).To(Equal(upstream.URL + "/events"))
				Expect(e.Source.StreamID).To(Equal(events[0].Source.StreamID))
			}
			Expect(kinds).To(ConsistOf("retry", "comment", "event", "data", "id", "data"))
			Expect(values).To(Equal(map[uint64]string{
				1: "1000",
				2: "hello",
				3: "update",
				4: `{"n":1}`,
				5: "7",
				6: "two",
			}))
		})
	})

	Context("when the upstream answers with an error status", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, "data: not an event stream\n")
			}))
			r = newTestRelay(upstream.URL, pub)
		})

		It("returns 502 with the upstream status", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("upstream returned status 404 Not Found"))

			Expect(r.Close()).To(Succeed())
			r = nil
			Expect(pub.Events()).To(BeEmpty())
		})
	})

	Context("when the upstream is unreachable", func() {
		BeforeEach(func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			url := dead.URL
			dead.Close()
			r = newTestRelay(url, nil)
		})

		It("returns 502", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/events", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(MatchJSON(`{"error":"upstream request failed"}`))
		})
	})

	Context("when the upstream goes quiet", func() {
		var upstreamGone chan struct{}

		BeforeEach(func() {
			upstreamGone = make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: first\n\n")
				w.(http.Flusher).Flush()
				<-req.Context().Done()
				close(upstreamGone)
			}))

			var err error
			r, err = New(Config{
				UpstreamURL:       upstream.URL,
				KeepAliveInterval: 50 * time.Millisecond,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("ends attached clients on Close", func() {
			addr := serveRelay(r)
			conn, br := dialStream(addr, "/events", "data: first")
			defer conn.Close()

			closed := make(chan error, 1)
			go func() {
				closed <- r.Close()
			}()
			Eventually(closed, 3*time.Second).Should(Receive())
			r = nil

			_, err := io.ReadAll(br)
			Expect(err).NotTo(HaveOccurred())
			Eventually(upstreamGone, 3*time.Second).Should(BeClosed())
		})

		It("sends keepalive comments while idle", func() {
			addr := serveRelay(r)
			conn, br := dialStream(addr, "/events", "data: first")
			defer conn.Close()

			readLine(br, ":")
		})

		It("releases the upstream once the client disconnects", func() {
			addr := serveRelay(r)
			conn, _ := dialStream(addr, "/events", "data: first")
			Expect(conn.Close()).To(Succeed())

			Eventually(upstreamGone, 3*time.Second).Should(BeClosed())
		})

		It("refuses new clients once closing", func() {
			Expect(r.Close()).To(Succeed())

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/events", nil), -1)
			r = nil
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("New", func() {
		It("requires an upstream", func() {
			_, err := New(Config{}, logger.Nop())
			Expect(err).To(MatchError("upstream url is required"))
		})
	})
})
