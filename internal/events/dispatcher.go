package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultDrainTimeout = 10 * time.Second

var ErrPublisherClosed = errors.New("publisher_closed")

// Dispatcher runs publishes in the background and tracks them so Close can
// wait for every accepted event before the underlying publisher shuts down.
type Dispatcher struct {
	inner        Publisher
	log          *zap.Logger
	drainTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewDispatcher(inner Publisher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{inner: inner, log: log, drainTimeout: defaultDrainTimeout}
}

// Publish sends synchronously through the wrapped publisher.
func (d *Dispatcher) Publish(ctx context.Context, routingKey string, payload any) error {
	if !d.begin() {
		return ErrPublisherClosed
	}
	defer d.inflight.Done()
	return d.inner.Publish(ctx, routingKey, payload)
}

// PublishAsync hands the event to a goroutine. Events submitted after Close
// are dropped with a warning.
func (d *Dispatcher) PublishAsync(routingKey string, payload any) {
	if !d.begin() {
		d.log.Warn("event dropped, publisher closed", zap.String("routing_key", routingKey))
		return
	}
	go func() {
		defer d.inflight.Done()
		if err := d.inner.Publish(context.Background(), routingKey, payload); err != nil {
			d.log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
		}
	}()
}

// Close stops accepting events, waits up to the drain timeout for in-flight
// publishes and then closes the wrapped publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(d.drainTimeout):
		d.log.Warn("closing publisher with events still in flight", zap.Duration("drain_timeout", d.drainTimeout))
	}
	return d.inner.Close()
}

func (d *Dispatcher) begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.inflight.Add(1)
	return true
}
