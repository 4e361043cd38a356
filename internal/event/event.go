package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory, asynchronous event bus. Publish never waits on
// handlers. Each subscription sees its events one at a time, in publish
// order; different subscriptions run concurrently.
type Bus struct {
	wg       sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]*subscription
}

// NewBus creates a bus. Call Stop to wait for in-flight handlers.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]*subscription),
	}
}

// Subscribe registers h for events with the given name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.SubscribeMany([]string{name}, h)
}

// SubscribeMany registers h for several event names. h receives all of
// them in one ordered stream.
func (b *Bus) SubscribeMany(names []string, h Handler) {
	sub := &subscription{bus: b, handler: h}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		b.handlers[name] = append(b.handlers[name], sub)
	}
}

// Publish queues e for every subscription to its name.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, sub := range subs {
		b.wg.Add(1)
		sub.enqueue(delivery{ctx: ctx, event: e})
	}
}

// Stop waits for all queued events to be handled.
func (b *Bus) Stop() {
	b.wg.Wait()
}

type delivery struct {
	ctx   context.Context
	event Event
}

// subscription drains its queue on at most one goroutine, started on demand.
type subscription struct {
	bus     *Bus
	handler Handler

	mu      sync.Mutex
	queue   []delivery
	running bool
}

func (s *subscription) enqueue(d delivery) {
	s.mu.Lock()
	s.queue = append(s.queue, d)
	start := !s.running
	s.running = true
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

func (s *subscription) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue[0] = delivery{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handle(d)
		s.bus.wg.Done()
	}
}

func (s *subscription) handle(d delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), defaultTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", d.event.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	if err := s.handler(ctx, d.event); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", d.event.Name(),
			"error", err,
		)
	}
}
