// Package tailcmder provides the tail command, which streams an event source
// and prints every parsed fragment.
package tailcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papercomputeco/eventsource/pkg/cliui"
	"github.com/papercomputeco/eventsource/pkg/config"
	"github.com/papercomputeco/eventsource/pkg/eventstream"
	publisherutils "github.com/papercomputeco/eventsource/pkg/eventstream/utils"
	"github.com/papercomputeco/eventsource/pkg/httpclient"
	"github.com/papercomputeco/eventsource/pkg/httpclient/nethttp"
	"github.com/papercomputeco/eventsource/pkg/logger"
	"github.com/papercomputeco/eventsource/pkg/sse"
	"github.com/papercomputeco/eventsource/pkg/utils"
)

type tailCommander struct {
	url          string
	method       string
	headers      []string
	maxFragments uint
	truncate     int

	publisher    string
	kafkaBrokers string
	kafkaTopic   string

	debug   bool
	logJSON bool

	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

const tailLongDesc string = `Stream an event source and print its fragments.

Opens the URL with "Accept: text/event-stream" and prints one line per
parsed field (data, event, id, retry or comment) as it arrives. The stream
ends when the source closes the connection, when --max-fragments is reached,
or on Ctrl-C.

Parsed fragments can also be published with --publisher kafka.

Examples:
  eventsource tail http://localhost:8080/events
  eventsource tail -n 10 -H "Authorization: Bearer token" https://example.com/stream
  eventsource tail --publisher kafka --kafka-topic fragments http://localhost:8080/events`

const tailShortDesc string = "Stream an event source and print its fragments"

var tailFlags = []string{
	config.FlagStreamURL,
	config.FlagStreamMethod,
	config.FlagMaxFragments,
	config.FlagPublisher,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagLogJSON,
}

func NewTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:   "tail [url]",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, tailFlags)

			cmder.url = v.GetString("stream.url")
			cmder.method = v.GetString("stream.method")
			cmder.maxFragments = v.GetUint("stream.max_fragments")
			cmder.publisher = v.GetString("publisher.provider")
			cmder.kafkaBrokers = v.GetString("kafka.brokers")
			cmder.kafkaTopic = v.GetString("kafka.topic")
			cmder.logJSON = v.GetBool("log.json")

			if len(args) == 1 {
				cmder.url = args[0]
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.out = cmd.OutOrStdout()
			// The spinner and the logger share stderr.
			cmder.errOut = zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStreamURL, &cmder.url)
	config.AddStringFlag(cmd, config.Flags, config.FlagStreamMethod, &cmder.method)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxFragments, &cmder.maxFragments)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	cmd.Flags().StringArrayVarP(&cmder.headers, "header", "H", nil, `Request header as "Key: Value" (repeatable)`)
	cmd.Flags().IntVar(&cmder.truncate, "truncate", 0, "Truncate fragment values to this many characters (0 disables)")

	return cmd
}

func (c *tailCommander) run(ctx context.Context) (err error) {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.logJSON),
		logger.WithWriter(c.errOut),
	)
	defer func() { _ = c.logger.Sync() }()

	req, err := c.newRequest()
	if err != nil {
		return err
	}

	pub, err := publisherutils.NewPublisher(&publisherutils.NewPublisherOpts{
		ProviderType: c.publisher,
		KafkaBrokers: c.kafkaBrokers,
		KafkaTopic:   c.kafkaTopic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer func() { err = multierr.Append(err, pub.Close()) }()

	client := nethttp.New(nethttp.WithLogger(c.logger))
	defer client.CloseIdleConnections()

	obs := &connectObserver{Observer: sse.NewLogObserver(c.logger), status: make(chan int, 1)}
	s := sse.Open(ctx, client, req, sse.WithObserver(obs))
	defer func() { err = multierr.Append(err, s.Close()) }()

	emitter := eventstream.NewEmitter(pub, eventstream.EventSource{
		StreamID: s.ID(),
		URL:      req.URL,
	})

	// The first Next performs the exchange; connecting ends as soon as the
	// status is known, which may be long before the first fragment.
	firstC := make(chan nextResult, 1)
	go func() {
		f, err := s.Next()
		firstC <- nextResult{f: f, err: err}
	}()

	var first nextResult
	received := false
	connectErr := cliui.Step(c.errOut, "Connecting to "+req.URL, func() error {
		select {
		case status := <-obs.status:
			if status == http.StatusOK {
				return nil
			}
			// The status error follows.
			first, received = <-firstC, true
		case first = <-firstC:
			received = true
		}
		if errors.Is(first.err, sse.Done) {
			return nil
		}
		return first.err
	})
	if connectErr != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("streaming %s: %w", req.URL, connectErr)
	}
	if !received {
		first = <-firstC
	}

	var count uint
	for f, ferr := first.f, first.err; ; f, ferr = s.Next() {
		if errors.Is(ferr, sse.Done) {
			break
		}
		if ferr != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("streaming %s: %w", req.URL, ferr)
		}

		c.print(f)
		if err := emitter.Emit(ctx, f); err != nil {
			c.logger.Warn("fragment not published", zap.String("stream_id", s.ID()), zap.Error(err))
		}

		count++
		if c.maxFragments > 0 && count >= c.maxFragments {
			break
		}
	}

	c.logger.Debug("tail finished", zap.String("stream_id", s.ID()), zap.Uint("fragments", count))
	return nil
}

// newRequest builds the stream request from the url, method and headers.
func (c *tailCommander) newRequest() (*httpclient.Request, error) {
	if c.url == "" {
		return nil, errors.New("no url given")
	}

	b := httpclient.NewRequestBuilder(c.method, c.url)
	for _, h := range c.headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected \"Key: Value\"", h)
		}
		b.Header(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	req, err := b.End()
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return req, nil
}

func (c *tailCommander) print(f sse.Fragment) {
	if c.truncate > 0 {
		f.Value = utils.Truncate(f.Value, c.truncate)
	}
	fmt.Fprintln(c.out, cliui.RenderFragment(f))
}

type nextResult struct {
	f   sse.Fragment
	err error
}

// connectObserver reports the response status as soon as it arrives.
type connectObserver struct {
	sse.Observer
	status chan int
}

func (o *connectObserver) ForStream(id string) sse.Observer {
	if scoped, ok := o.Observer.(interface{ ForStream(string) sse.Observer }); ok {
		o.Observer = scoped.ForStream(id)
	}
	return o
}

func (o *connectObserver) ResponseReceived(status int) {
	o.Observer.ResponseReceived(status)
	o.status <- status
}
