// Package worker provides an asynchronous worker pool that publishes fragment
// events with the configured eventstream.Publisher.
//
// The pool decouples publishing from the relay's streaming hot path so a slow
// broker never holds up the bytes flowing to the client.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrQueueFull is returned by PublishFragment when the event was dropped.
var ErrQueueFull = errors.New("worker: queue full, event dropped")

// ErrPoolClosed is returned by PublishFragment after Close.
var ErrPoolClosed = errors.New("worker: pool closed")

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.FragmentEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every enqueued event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool publishes fragment events asynchronously via a worker pool.
// It implements eventstream.Publisher so it can stand in for the backend.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ eventstream.Publisher = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("stream_id", job.Event.Source.StreamID),
			zap.Uint64("sequence", job.Event.Sequence),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("stream_id", job.Event.Source.StreamID),
			zap.Uint64("sequence", job.Event.Sequence),
		)
		return false
	}
}

// PublishFragment enqueues event without waiting for it to be published.
func (p *Pool) PublishFragment(_ context.Context, event *eventstream.FragmentEvent) error {
	if event == nil {
		return eventstream.ErrNilFragmentEvent
	}

	if p.Enqueue(Job{Event: event}) {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	return ErrQueueFull
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
// The underlying publisher is not closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("publish worker stopped", zap.Uint("worker_id", id))
}

// processJob publishes a single event. Failures are logged, not retried.
func (p *Pool) processJob(job Job) {
	if err := p.config.Publisher.PublishFragment(context.Background(), job.Event); err != nil {
		p.logger.Error("async publish failed",
			zap.String("stream_id", job.Event.Source.StreamID),
			zap.Uint64("sequence", job.Event.Sequence),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("fragment published",
		zap.String("event_id", job.Event.EventID),
	)
}
