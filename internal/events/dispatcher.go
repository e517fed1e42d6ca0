package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tequest-attempts/internal/domain"
)

// Handler reacts to a lifecycle event. Errors are logged and never reach the
// operation that emitted the event.
type Handler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// Options tune a Dispatcher. Zero values fall back to defaults.
type Options struct {
	Buffer         int
	Workers        int
	HandlerTimeout time.Duration
}

const (
	defaultBuffer         = 256
	defaultWorkers        = 2
	defaultHandlerTimeout = 5 * time.Second
)

// Dispatcher delivers events to its handlers on a pool of background workers.
// Publish never blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	handlers []namedHandler
	timeout  time.Duration
	workers  int
	queue    chan domain.Event

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64

	group *errgroup.Group
}

type namedHandler struct {
	name    string
	handler Handler
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = defaultHandlerTimeout
	}
	return &Dispatcher{
		timeout: opts.HandlerTimeout,
		workers: opts.Workers,
		queue:   make(chan domain.Event, opts.Buffer),
	}
}

// Register adds a handler. It must be called before Start.
func (d *Dispatcher) Register(name string, handler Handler) {
	d.handlers = append(d.handlers, namedHandler{name: name, handler: handler})
}

// Start launches the workers. Handler calls keep the values of ctx but not its
// cancellation so that Close can still drain the queue during shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	group := &errgroup.Group{}
	for i := 0; i < d.workers; i++ {
		group.Go(func() error {
			for event := range d.queue {
				d.deliver(ctx, event)
			}
			return nil
		})
	}
	d.group = group
}

// Publish enqueues event for delivery without blocking.
func (d *Dispatcher) Publish(event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Printf("events: queue full, dropped %s for attempt %s", event.Action, event.AttemptID)
	}
}

// Dropped returns how many events were discarded because the queue was full
// or the dispatcher was closed.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are delivered.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if d.group == nil {
		// Never started: drain inline so nothing queued is lost.
		for event := range d.queue {
			d.deliver(context.Background(), event)
		}
		return nil
	}
	return d.group.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.Event) {
	for _, h := range d.handlers {
		if err := d.call(ctx, h, event); err != nil {
			log.Printf("events: %s handler failed for %s: %v", h.name, event.Action, err)
		}
	}
}

func (d *Dispatcher) call(ctx context.Context, h namedHandler, event domain.Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.handler.Handle(ctx, event)
}
