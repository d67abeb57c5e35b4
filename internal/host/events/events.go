// Package events drains subscription fire events off the command thread: a
// bounded queue feeding a small worker pool, so a burst of marker fires
// never blocks the dispatch path that produced them. Capacity is fixed at
// construction with no silent growth, and a full queue drops the event
// with a logged warning rather than blocking.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/selva-engine/internal/core/subs"
)

// Handler processes one fired event, e.g. rendering it onto a client's
// notification channel.
type Handler func(subs.Event)

// Pool is a bounded, best-effort async publisher: Publish never blocks the
// caller once the queue is full, and workers run Handler on their own
// goroutines supervised by an errgroup.
type Pool struct {
	log     *zap.Logger
	queue   chan subs.Event
	handler Handler

	mu      sync.Mutex
	dropped uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New starts workerCount workers draining a queue of depth queueDepth,
// calling handler for each event. Call Close to stop the workers.
func New(log *zap.Logger, queueDepth, workerCount int, handler Handler) *Pool {
	log = log.Named("events")
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		log:     log,
		queue:   make(chan subs.Event, queueDepth),
		handler: handler,
		cancel:  cancel,
		group:   g,
	}

	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}

	return p
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.handler(ev)
		}
	}
}

// Publish implements subs.Publisher: non-blocking, best-effort. A full
// queue logs a warning and drops the event — the core's Fire* calls never
// fail because of back-pressure here (see internal/core/subs/events.go).
func (p *Pool) Publish(ev subs.Event) {
	select {
	case p.queue <- ev:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		p.log.Warn("event queue full, dropping",
			zap.String("subscription_id", ev.SubscriptionID),
			zap.Uint64("total_dropped", n),
		)
	}
}

// Dropped returns the number of events dropped due to back-pressure so far.
func (p *Pool) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops all workers and waits for them to return.
func (p *Pool) Close() {
	p.cancel()
	_ = p.group.Wait()
}
