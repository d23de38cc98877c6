package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fulfillment-service/pkg/logkey"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Dispatcher is an in-process Publisher: a bounded queue drained by one
// worker goroutine. Publish never blocks; a full queue drops the event.
type Dispatcher struct {
	handler Handler
	events  chan Event

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

func NewDispatcher(h Handler, size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	return &Dispatcher{
		handler: h,
		events:  make(chan Event, size),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Publish(_ context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.events <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the worker until Close is called. Handler errors are logged
// and the event is discarded. Only the first call starts a worker.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go func() {
		defer close(d.done)
		for e := range d.events {
			if err := d.handler.Handle(ctx, e); err != nil {
				slog.Error("notification delivery failed",
					slog.String(logkey.Event, string(e.Kind)),
					slog.Int64(logkey.OrderID, e.OrderID),
					slog.String(logkey.ERROR, err.Error()))
			}
		}
	}()
}

// Close stops accepting events and waits for the queued ones to be handled.
// Without a running worker the queued events are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	started := d.started
	d.mu.Unlock()
	if started {
		<-d.done
	}
}
