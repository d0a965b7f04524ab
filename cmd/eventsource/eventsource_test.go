package eventsourcecmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	eventsourcecmder "github.com/papercomputeco/eventsource/cmd/eventsource"
	"github.com/papercomputeco/eventsource/pkg/cliui"
	"github.com/papercomputeco/eventsource/pkg/utils"
)

// execute runs the root command with args and returns stdout.
func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := eventsourcecmder.NewEventsourceCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("NewEventsourceCmd", func() {
	It("registers the subcommands", func() {
		cmd := eventsourcecmder.NewEventsourceCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("tail", "relay", "config", "version"))
	})

	It("has the global flags", func() {
		cmd := eventsourcecmder.NewEventsourceCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("prints the version", func() {
		out, err := execute("version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Version: " + utils.Version))
	})
})

var _ = Describe("tail", func() {
	var (
		configDir string
		upstream  *httptest.Server
		headers   chan http.Header
	)

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "eventsource-tail-test-*")
		Expect(err).NotTo(HaveOccurred())
		headers = make(chan http.Header, 1)

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			if r.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, event := range []string{
				": connected\n\n",
				"event: greeting\ndata: hello world\n\n",
				"id: 42\ndata: second\n\n",
			} {
				fmt.Fprint(w, event)
				flusher.Flush()
			}
		}))
	})

	AfterEach(func() {
		upstream.Close()
		os.RemoveAll(configDir)
	})

	It("prints every fragment until the source ends", func() {
		out, err := execute("tail", upstream.URL+"/events", "--config-dir", configDir, "-H", "Authorization: Bearer t")
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(5))
		Expect(lines[0]).To(ContainSubstring("connected"))
		Expect(lines[1]).To(ContainSubstring("greeting"))
		Expect(lines[2]).To(ContainSubstring("hello world"))
		Expect(lines[3]).To(ContainSubstring("42"))
		Expect(lines[4]).To(ContainSubstring("second"))

		var h http.Header
		Eventually(headers).Should(Receive(&h))
		Expect(h.Get("Accept")).To(Equal("text/event-stream"))
		Expect(h.Get("Authorization")).To(Equal("Bearer t"))
	})

	It("stops after --max-fragments", func() {
		out, err := execute("tail", upstream.URL+"/events", "--config-dir", configDir, "-n", "2")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Split(strings.TrimSpace(out), "\n")).To(HaveLen(2))
	})

	It("truncates long values", func() {
		out, err := execute("tail", upstream.URL+"/events", "--config-dir", configDir, "--truncate", "5")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("hello..."))
		Expect(out).NotTo(ContainSubstring("hello world"))
	})

	It("reads the url from the config file", func() {
		Expect(os.WriteFile(configDir+"/config.toml",
			[]byte(fmt.Sprintf("[stream]\nurl = %q\nmax_fragments = 1\n", upstream.URL+"/events")), 0o600)).To(Succeed())

		out, err := execute("tail", "--config-dir", configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Split(strings.TrimSpace(out), "\n")).To(HaveLen(1))
		Expect(out).To(ContainSubstring("connected"))
	})

	It("fails on a non-200 response", func() {
		_, err := execute("tail", upstream.URL+"/missing", "--config-dir", configDir)
		Expect(err).To(MatchError(ContainSubstring("404")))
	})

	It("fails when the source is unreachable", func() {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		_, err := execute("tail", url+"/events", "--config-dir", configDir)
		Expect(err).To(MatchError(ContainSubstring("streaming " + url + "/events")))
	})

	It("finishes connecting before the first fragment arrives", func() {
		release := make(chan struct{})
		quiet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "\n\n")
			w.(http.Flusher).Flush()
			select {
			case <-release:
				fmt.Fprint(w, "data: late\n\n")
			case <-r.Context().Done():
			}
		}))
		defer quiet.Close()

		var out, errOut syncBuffer
		cmd := eventsourcecmder.NewEventsourceCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"tail", quiet.URL + "/events", "--config-dir", configDir})

		done := make(chan error, 1)
		go func() {
			done <- cmd.Execute()
		}()

		Eventually(errOut.String, 3*time.Second).Should(ContainSubstring(cliui.SuccessMark))
		Expect(out.String()).To(BeEmpty())

		close(release)
		Eventually(done, 3*time.Second).Should(Receive(BeNil()))
		Expect(out.String()).To(ContainSubstring("late"))
	})

	It("rejects malformed headers", func() {
		_, err := execute("tail", upstream.URL, "--config-dir", configDir, "-H", "no-colon")
		Expect(err).To(MatchError(ContainSubstring(`invalid header "no-colon"`)))
	})

	It("rejects an unknown publisher", func() {
		_, err := execute("tail", upstream.URL, "--config-dir", configDir, "--publisher", "nats")
		Expect(err).To(MatchError(ContainSubstring("unsupported publisher provider: nats")))
	})
})

var _ = Describe("relay", func() {
	It("rejects an unknown publisher before listening", func() {
		configDir := GinkgoT().TempDir()
		_, err := execute("relay", "--config-dir", configDir, "--publisher", "nats")
		Expect(err).To(MatchError(ContainSubstring("unsupported publisher provider: nats")))
	})

	It("requires kafka settings for the kafka publisher", func() {
		configDir := GinkgoT().TempDir()
		_, err := execute("relay", "--config-dir", configDir, "--publisher", "kafka", "--kafka-brokers", "")
		Expect(err).To(MatchError(ContainSubstring("no brokers")))
	})

	It("appends JSON logs to --log-file", func() {
		configDir := GinkgoT().TempDir()
		logFile := filepath.Join(configDir, "relay.log")

		_, err := execute("relay", "--config-dir", configDir, "--publisher", "nats",
			"--upstream", "http://upstream.test", "--log-file", logFile)
		Expect(err).To(HaveOccurred())

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		line, _, _ := strings.Cut(string(data), "\n")

		var entry map[string]any
		Expect(json.Unmarshal([]byte(line), &entry)).To(Succeed())
		Expect(entry["msg"]).To(Equal("configuring relay"))
		Expect(entry["upstream"]).To(Equal("http://upstream.test"))
	})

	It("fails when the log file cannot be opened", func() {
		configDir := GinkgoT().TempDir()
		_, err := execute("relay", "--config-dir", configDir,
			"--log-file", filepath.Join(configDir, "missing", "relay.log"))
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
