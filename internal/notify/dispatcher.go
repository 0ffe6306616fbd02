// Package notify delivers out-of-band email about suggestion decisions.
// Delivery never blocks or fails the request that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a single notification.
const DefaultTimeout = 30 * time.Second

// Dispatcher runs notification jobs in the background and tracks them so
// shutdown can wait for in-flight deliveries.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewDispatcher creates a dispatcher. A zero timeout uses DefaultTimeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{timeout: timeout}
}

// Go runs fn in its own goroutine. fn gets ctx's values but not its
// cancellation, so a finished request does not abort the delivery.
// Errors and panics are logged.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "notification panicked", "name", name, "panic", r)
			}
		}()

		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "notification failed", "name", name, "err", err)
			return
		}
		slog.DebugContext(ctx, "notification sent", "name", name)
	}()
}

// Wait blocks until every dispatched job has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
