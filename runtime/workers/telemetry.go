package workers

import (
	"context"
	"log/slog"
	"time"

	"activity-hub/observability"
)

// TelemetryWorker periodically logs a snapshot of the hub counters together
// with process resource usage. It is the observability sink of last resort:
// even without the debug UI, delivery failures end up visible somewhere.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    *observability.Stats
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats *observability.Stats, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := w.stats.Snapshot()
			w.log.Info("Hub telemetry",
				"open_connections", snap.OpenConnections,
				"total_connections", snap.TotalConnections,
				"joins", snap.Joins,
				"leaves", snap.Leaves,
				"messages_stored", snap.MessagesStored,
				"events_delivered", snap.EventsDelivered,
				"delivery_failures", snap.DeliveryFailures,
				"alloc_mb", snap.AllocMemMb,
				"cpu_percent", snap.ProcessCPUPercent,
				"rss_mb", snap.ProcessRSSMb)
		}
	}
}
