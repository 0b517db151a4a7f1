package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hotelops/requisition-approval/internal/domain/event"
)

// ErrClosed is returned when dispatching on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes requisition events to registered handlers
type Dispatcher interface {
	// Subscribe registers a named handler for one or more event types
	Subscribe(name string, handler Handler, types ...event.Type)

	// Unsubscribe removes a named handler from every type it was registered for
	Unsubscribe(name string)

	// Dispatch runs handlers in registration order and stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs every handler in its own goroutine, detached from
	// the caller's cancellation
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Handlers lists the handler names registered for an event type
	Handlers(eventType event.Type) []string

	// Close waits for async handlers and refuses further dispatches
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], HandlerInfo{Name: name, EventType: t, Handler: handler})
		d.info("Handler registered", "event_type", t, "handler_name", name)
	}
}

func (d *eventDispatcher) Unsubscribe(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for t, handlers := range d.handlers {
		kept := handlers[:0:0]
		for _, h := range handlers {
			if h.Name != name {
				kept = append(kept, h)
			}
		}
		d.handlers[t] = kept
	}
}

func (d *eventDispatcher) snapshot(t event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[t]...)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, h := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, h); err != nil {
			d.error("Handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "error", err)
			return fmt.Errorf("handler %s failed: %w", h.Name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	// the closed check and wg.Add share Close's lock so Add never races Wait
	d.mu.RLock()
	if d.closed.Load() {
		d.mu.RUnlock()
		d.error("Dropping event, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.wg.Add(len(handlers))
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		go func(h HandlerInfo) {
			defer d.wg.Done()
			if err := d.safeExecute(detached, evt, h); err != nil {
				d.error("Async handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "error", err)
			}
		}(h)
	}
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	handlers := d.snapshot(eventType)
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name
	}
	return names
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return ErrClosed
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.info("Dispatcher closed")
	return nil
}

func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) error(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
