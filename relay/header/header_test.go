package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
		got http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
		got = nil

		app.Get("/test", func(c *fiber.Ctx) error {
			b := httpclient.NewRequestBuilder(http.MethodGet, "http://upstream/test")
			hh.SetUpstreamRequestHeaders(c, b)
			req, err := b.End()
			if err != nil {
				return err
			}
			got = req.Header
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		_ = app.Shutdown()
	})

	send := func(h map[string]string) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		for k, v := range h {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	}

	It("forwards standard headers to the upstream request", func() {
		send(map[string]string{
			"Authorization": "Bearer token123",
			"Last-Event-Id": "42",
			"X-Api-Key":     "secret",
		})

		Expect(got.Get("Authorization")).To(Equal("Bearer token123"))
		Expect(got.Get("Last-Event-Id")).To(Equal("42"))
		Expect(got.Get("X-Api-Key")).To(Equal("secret"))
	})

	It("strips the Host header", func() {
		send(nil)
		Expect(got.Get("Host")).To(BeEmpty())
	})

	It("strips Accept-Encoding so Go's http.Transport negotiates its own", func() {
		send(map[string]string{"Accept-Encoding": "gzip, br"})
		Expect(got.Get("Accept-Encoding")).To(BeEmpty())
	})

	It("strips Accept since the stream negotiates it", func() {
		send(map[string]string{"Accept": "text/event-stream"})
		Expect(got.Values("Accept")).To(BeEmpty())
	})
})

var _ = Describe("SetClientResponseHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		_ = app.Shutdown()
	})

	relay := func(upstream http.Header) *http.Response {
		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetClientResponseHeaders(c, &httpclient.Response{StatusCode: http.StatusOK, Header: upstream})
			return c.SendString("ok")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	It("forwards standard upstream response headers to the client", func() {
		resp := relay(http.Header{
			"Cache-Control": {"no-cache"},
			"X-Request-Id":  {"abc"},
		})
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc"))
	})

	It("strips the Connection header", func() {
		resp := relay(http.Header{"Connection": {"upgrade"}})
		Expect(resp.Header.Get("Connection")).NotTo(Equal("upgrade"))
	})

	It("strips Content-Encoding since the relayed body is always decompressed", func() {
		resp := relay(http.Header{"Content-Encoding": {"gzip"}})
		Expect(resp.Header.Get("Content-Encoding")).To(BeEmpty())
	})

	It("joins multi-value response headers with commas", func() {
		resp := relay(http.Header{"X-Multi": {"a", "b"}})
		Expect(resp.Header.Get("X-Multi")).To(Equal("a, b"))
	})
})
