package sink

import (
	"context"
	"sync"
	"time"

	"activity-hub/domain/event"
	"activity-hub/errors"
)

// ConnSink buffers events for a single connection. The transport write pump
// is the only reader, which preserves per-recipient FIFO ordering: events are
// pushed in the order the hub accepted them and drained in the same order.
type ConnSink struct {
	events    chan event.DomainEvent
	timeout   time.Duration
	closed    chan struct{}
	closeOnce sync.Once
}

func NewConnSink(bufferSize int, timeout time.Duration) *ConnSink {
	return &ConnSink{
		events:  make(chan event.DomainEvent, bufferSize),
		timeout: timeout,
		closed:  make(chan struct{}),
	}
}

// Consume enqueues an event for delivery. A connection whose buffer stays
// full past the timeout is reported as a delivery failure to the dispatcher;
// it is never allowed to stall the rest of the room.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.closed:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrSinkBackpressure
	}
}

// Events exposes the drain side of the sink to the write pump.
func (s *ConnSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Close marks the sink as dead. Idempotent: the transport calls it on
// disconnect and the hub calls it again during unregistration.
func (s *ConnSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// Done is closed once the sink is dead; write pumps select on it to stop.
func (s *ConnSink) Done() <-chan struct{} {
	return s.closed
}

// Closed reports whether Close has been called.
func (s *ConnSink) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
