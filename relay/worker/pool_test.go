package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/eventstream"
	"github.com/papercomputeco/eventsource/pkg/sse"
)

// memoryPublisher records published events.
type memoryPublisher struct {
	mu     sync.Mutex
	events []*eventstream.FragmentEvent
	err    error
	block  chan struct{}
}

func (m *memoryPublisher) PublishFragment(_ context.Context, event *eventstream.FragmentEvent) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryPublisher) Close() error { return nil }

func (m *memoryPublisher) Events() []*eventstream.FragmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.FragmentEvent(nil), m.events...)
}

func newEvent(seq uint64) *eventstream.FragmentEvent {
	return eventstream.NewFragmentEvent(
		eventstream.EventSource{StreamID: "stream", URL: "http://upstream.test/"},
		seq,
		sse.Fragment{Kind: sse.KindData, Value: "v"},
	)
}

var _ = Describe("Worker Pool", func() {
	var (
		wp  *Pool
		pub *memoryPublisher
	)

	BeforeEach(func() {
		pub = &memoryPublisher{}
		var err error
		wp, err = NewPool(&Config{Publisher: pub, Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewPool", func() {
		It("requires a publisher", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(MatchError("publisher is required"))
		})

		It("applies defaults", func() {
			Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(cap(wp.queue)).To(Equal(int(defaultJobQueueSize)))
			Expect(wp.Close()).To(Succeed())
		})
	})

	Describe("Enqueue", func() {
		It("publishes every queued event before Close returns", func() {
			for i := range uint64(10) {
				Expect(wp.Enqueue(Job{Event: newEvent(i + 1)})).To(BeTrue())
			}
			Expect(wp.Close()).To(Succeed())

			Expect(pub.Events()).To(HaveLen(10))
		})

		It("drops jobs when the queue is full", func() {
			pub.block = make(chan struct{})
			full, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
			Expect(err).NotTo(HaveOccurred())

			// The single worker takes the first job and blocks; the second fills the queue.
			Expect(full.Enqueue(Job{Event: newEvent(1)})).To(BeTrue())
			Eventually(func() int { return len(full.queue) }).Should(BeZero())
			Expect(full.Enqueue(Job{Event: newEvent(2)})).To(BeTrue())
			Expect(full.Enqueue(Job{Event: newEvent(3)})).To(BeFalse())
			Expect(full.PublishFragment(context.Background(), newEvent(4))).To(MatchError(ErrQueueFull))

			close(pub.block)
			Expect(full.Close()).To(Succeed())
			Expect(wp.Close()).To(Succeed())
			Expect(pub.Events()).To(HaveLen(2))
		})

		It("refuses jobs after Close", func() {
			Expect(wp.Close()).To(Succeed())
			Expect(wp.Enqueue(Job{Event: newEvent(1)})).To(BeFalse())
			Expect(wp.PublishFragment(context.Background(), newEvent(1))).To(MatchError(ErrPoolClosed))
			Expect(wp.Close()).To(Succeed())
		})
	})

	Describe("PublishFragment", func() {
		It("rejects nil events", func() {
			Expect(wp.PublishFragment(context.Background(), nil)).To(MatchError(eventstream.ErrNilFragmentEvent))
			Expect(wp.Close()).To(Succeed())
		})

		It("keeps going after a publish failure", func() {
			pub.err = errors.New("broker down")
			Expect(wp.PublishFragment(context.Background(), newEvent(1))).To(Succeed())
			Expect(wp.Close()).To(Succeed())
			Expect(pub.Events()).To(BeEmpty())
		})
	})
})
