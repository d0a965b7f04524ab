package sse

import (
	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/httpclient"
)

// Observer receives notifications from a Stream and its Parser. Nothing in
// the pipeline depends on whether an Observer is attached.
type Observer interface {
	StreamOpened(id string, req *httpclient.Request)
	ResponseReceived(statusCode int)
	FragmentParsed(f Fragment)
	LineSkipped(line string)
	PartialLineDiscarded(rest []byte)
	StreamClosed(err error)
}

// streamScoped is implemented by observers that can bind themselves to a
// single stream.
type streamScoped interface {
	ForStream(id string) Observer
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) StreamOpened(string, *httpclient.Request) {}
func (NopObserver) ResponseReceived(int)                     {}
func (NopObserver) FragmentParsed(Fragment)                  {}
func (NopObserver) LineSkipped(string)                       {}
func (NopObserver) PartialLineDiscarded([]byte)              {}
func (NopObserver) StreamClosed(error)                       {}

// LogObserver reports stream activity to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver returns an Observer that logs to l.
func NewLogObserver(l *zap.Logger) *LogObserver {
	return &LogObserver{logger: l}
}

// ForStream returns a LogObserver whose entries carry the stream id.
func (o *LogObserver) ForStream(id string) Observer {
	return &LogObserver{logger: o.logger.With(zap.String("stream_id", id))}
}

func (o *LogObserver) StreamOpened(id string, req *httpclient.Request) {
	o.logger.Debug("opening event source",
		zap.String("stream_id", id),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)
}

func (o *LogObserver) ResponseReceived(statusCode int) {
	if statusCode != 200 {
		o.logger.Error("event source returned non-200 status", zap.Int("status", statusCode))
		return
	}
	o.logger.Info("received response from event source", zap.Int("status", statusCode))
}

func (o *LogObserver) FragmentParsed(f Fragment) {
	o.logger.Debug("parsed fragment",
		zap.Stringer("kind", f.Kind),
		zap.String("value", f.Value),
	)
}

func (o *LogObserver) LineSkipped(line string) {
	if line == "" {
		o.logger.Debug("skipped blank line")
		return
	}
	o.logger.Warn("received unrecognized event source line", zap.String("line", line))
}

func (o *LogObserver) PartialLineDiscarded(rest []byte) {
	o.logger.Warn("event source ended mid-line, dropping partial line",
		zap.Int("bytes", len(rest)),
	)
}

func (o *LogObserver) StreamClosed(err error) {
	if err != nil {
		o.logger.Error("event source stream failed", zap.Error(err))
		return
	}
	o.logger.Debug("event source stream ended")
}
