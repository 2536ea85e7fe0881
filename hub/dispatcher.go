package hub

import (
	"context"
	"fmt"
	"log/slog"

	"activity-hub/domain"
	"activity-hub/domain/event"
	"activity-hub/observability"
)

var errUnknownRecipient = fmt.Errorf("recipient unregistered during delivery")

// DeliveryFailure records one recipient the event never reached.
type DeliveryFailure struct {
	Conn ConnID
	Err  error
}

// DeliveryReport sums up one broadcast. Failures are local and non-fatal:
// they are reported here and to the observability counters, never to the
// sender.
type DeliveryReport struct {
	Activity  domain.ActivityID
	Attempted int
	Delivered int
	Failures  []DeliveryFailure
}

func (r DeliveryReport) AllDelivered() bool {
	return len(r.Failures) == 0
}

// Dispatcher fans one event out to every connection in the activity's room.
type Dispatcher struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Rooms
	stats    *observability.Stats
}

func NewDispatcher(log *slog.Logger, registry *Registry, rooms *Rooms, stats *observability.Stats) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, rooms: rooms, stats: stats}
}

// Broadcast delivers e to the member snapshot taken at call time. Connections
// joining mid-broadcast are not included; connections leaving mid-broadcast
// still get a delivery attempt. Each attempt is independent: one dead or slow
// recipient never aborts the rest of the batch.
func (d *Dispatcher) Broadcast(ctx context.Context, activity domain.ActivityID, e event.DomainEvent) DeliveryReport {
	members := d.rooms.MembersOf(activity)
	report := DeliveryReport{Activity: activity, Attempted: len(members)}

	for _, id := range members {
		conn, ok := d.registry.Get(id)
		if !ok {
			// Unregistered between snapshot and delivery.
			report.Failures = append(report.Failures, DeliveryFailure{Conn: id, Err: errUnknownRecipient})
			continue
		}
		if err := conn.Sink.Consume(ctx, e); err != nil {
			report.Failures = append(report.Failures, DeliveryFailure{Conn: id, Err: err})
			d.log.Warn("Event delivery failed",
				"activity", activity,
				"connection", id,
				"error", err)
			continue
		}
		report.Delivered++
	}

	d.stats.AddDelivered(report.Delivered)
	d.stats.AddDeliveryFailures(len(report.Failures))
	return report
}
