package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"whiteboard/contract"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// ActiveCounter reports how many connection handlers are running.
type ActiveCounter interface {
	Active() int
}

// TelemetryWorker periodically logs the state of the session together with
// the resource usage of the server process.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	stats          contract.StatsProvider
	handlers       ActiveCounter
	proc           *process.Process
}

// NewTelemetryWorker returns nil when metricInterval is not positive,
// which disables telemetry altogether.
func NewTelemetryWorker(
	log *slog.Logger,
	metricInterval time.Duration,
	stats contract.StatsProvider,
	handlers ActiveCounter,
) *TelemetryWorker {
	if metricInterval <= 0 {
		return nil
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
	}
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		stats:          stats,
		handlers:       handlers,
		proc:           proc,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *TelemetryWorker) report() {
	stats := w.stats.Stats()
	attrs := []any{
		"session_id", stats.SessionID,
		"has_owner", stats.HasOwner,
		"ended", stats.Ended,
		"admitted", stats.Admitted,
		"pending", stats.Pending,
		"handlers", w.handlers.Active(),
	}
	if w.proc != nil {
		if mem, err := w.proc.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_bytes", mem.RSS)
		} else {
			w.log.Debug("Error while reading process memory", "error", err)
		}
		if cpu, err := w.proc.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", cpu)
		} else {
			w.log.Debug("Error while reading process cpu usage", "error", err)
		}
	}
	w.log.Info("Session telemetry", attrs...)
}
