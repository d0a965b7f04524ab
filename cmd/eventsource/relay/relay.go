// Package relaycmder provides the relay server command.
package relaycmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/config"
	publisherutils "github.com/papercomputeco/eventsource/pkg/eventstream/utils"
	"github.com/papercomputeco/eventsource/pkg/logger"
	"github.com/papercomputeco/eventsource/relay"
)

type relayCommander struct {
	listen   string
	upstream string

	publisher    string
	kafkaBrokers string
	kafkaTopic   string

	debug   bool
	logJSON bool
	logFile string

	logger *zap.Logger
}

const relayLongDesc string = `Run the relay server.

Every GET is forwarded to the same path and query on the upstream event
source. A 200 upstream stream is relayed to the client byte for byte while
each parsed fragment is published to the configured publisher. Upstream
failures are answered with 502 and a JSON error body.

With --log-file, logs are also appended to that file as JSON.

Supported publishers: nop, kafka

Examples:
  eventsource relay --upstream http://localhost:8080 --listen :8090
  eventsource relay --upstream http://localhost:8080 --log-file relay.log
  eventsource relay --publisher kafka --kafka-brokers localhost:9092 --kafka-topic fragments`

const relayShortDesc string = "Run the event stream relay"

var relayFlags = []string{
	config.FlagRelayUpstream,
	config.FlagRelayListen,
	config.FlagPublisher,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagLogJSON,
	config.FlagLogFile,
}

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, relayFlags)

			cmder.upstream = v.GetString("relay.upstream")
			cmder.listen = v.GetString("relay.listen")
			cmder.publisher = v.GetString("publisher.provider")
			cmder.kafkaBrokers = v.GetString("kafka.brokers")
			cmder.kafkaTopic = v.GetString("kafka.topic")
			cmder.logJSON = v.GetBool("log.json")
			cmder.logFile = v.GetString("log.file")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &cmder.logJSON)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

func (c *relayCommander) run() (err error) {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeLog()) }()
	defer func() { _ = c.logger.Sync() }()

	c.logger.Info("configuring relay",
		zap.String("upstream", c.upstream),
		zap.String("publisher", c.publisher),
	)

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

	r, err := relay.New(relay.Config{
		ListenAddr:  c.listen,
		UpstreamURL: c.upstream,
		Publisher:   pub,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	// Registered after the publisher so the pool drains before it closes.
	defer func() { err = multierr.Append(err, r.Close()) }()

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

// setupLogger builds the console logger and, when a log file is configured,
// tees it with a JSON logger appending to that file. The returned func closes
// the file.
func (c *relayCommander) setupLogger() (func() error, error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithJSON(c.logJSON), logger.WithCaller(true))
	if c.logFile == "" {
		c.logger = console
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	c.logger = logger.Multi(console, file)
	return f.Close, nil
}
