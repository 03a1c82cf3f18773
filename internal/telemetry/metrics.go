// Package telemetry implements the core's two telemetry surfaces: a
// Prometheus metrics registry with HTTP exposition (§10.5) and
// OpenTelemetry tracing spans per dispatched task (tracing.go), plus the
// Violation event bus (violations.go).
//
// Grounded directly on the teacher's internal/observability/metrics.go:
// dedicated registry (never the global one), namespaced Counter/Gauge/
// Histogram fields, a /healthz endpoint alongside /metrics, and an uptime
// gauge updated by a ticker goroutine.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics owns a dedicated Prometheus registry and the core's exported
// series.
type Metrics struct {
	registry *prometheus.Registry
	log      *zap.Logger
	startAt  time.Time

	TasksDispatchedTotal *prometheus.CounterVec
	TasksFailedTotal     *prometheus.CounterVec
	TaskLatencyMS        prometheus.Histogram
	QueueDepth           prometheus.Gauge
	ViolationsTotal      *prometheus.CounterVec
	ThermalLevel         prometheus.Gauge
	BatteryDrainPer600S  prometheus.Gauge
	ResourceRSSMB        prometheus.Gauge
	UptimeSeconds        prometheus.Gauge
}

// NewMetrics constructs and registers every series on a fresh registry.
func NewMetrics(log *zap.Logger) *Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		log:      log,
		startAt:  time.Now(),

		// ─── Scheduler dispatch ───
		TasksDispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtimecore", Subsystem: "scheduler", Name: "tasks_dispatched_total",
			Help: "Total tasks dispatched, by workload tag.",
		}, []string{"workload"}),
		TasksFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtimecore", Subsystem: "scheduler", Name: "tasks_failed_total",
			Help: "Total tasks that completed Failed, by workload tag.",
		}, []string{"workload"}),
		TaskLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "runtimecore", Subsystem: "scheduler", Name: "task_latency_ms",
			Help:    "Task execution latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtimecore", Subsystem: "scheduler", Name: "queue_depth",
			Help: "Number of tasks currently queued.",
		}),

		// ─── Budget violations ───
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtimecore", Subsystem: "budget", Name: "violations_total",
			Help: "Total budget violations emitted, by constraint.",
		}, []string{"constraint"}),

		// ─── Samplers ───
		ThermalLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtimecore", Subsystem: "sampler", Name: "thermal_level",
			Help: "Current thermal level enum (-1..3).",
		}),
		BatteryDrainPer600S: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtimecore", Subsystem: "sampler", Name: "battery_drain_per_600s",
			Help: "Current battery drain rate, percent per 600s.",
		}),
		ResourceRSSMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtimecore", Subsystem: "sampler", Name: "resource_rss_mb",
			Help: "Current process RSS in megabytes.",
		}),

		// ─── Process ───
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runtimecore", Subsystem: "process", Name: "uptime_seconds",
			Help: "Seconds since the core started.",
		}),
	}

	reg.MustRegister(
		m.TasksDispatchedTotal, m.TasksFailedTotal, m.TaskLatencyMS, m.QueueDepth,
		m.ViolationsTotal, m.ThermalLevel, m.BatteryDrainPer600S, m.ResourceRSSMB, m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ServeMetrics starts an HTTP server exposing /metrics and /healthz on
// addr, shutting down when ctx is cancelled.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go m.updateUptime(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startAt).Seconds())
		}
	}
}
