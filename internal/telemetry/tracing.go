package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider, grounded on
// 99souls-ariadne's engine/telemetry tracer-provider wiring (§10.5): a
// dedicated provider rather than the global default, so multiple
// Scheduler instances in one process don't collide.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer constructs a TracerProvider with a batching span processor
// wired to exporter. exporter may be nil (grounded on
// 99souls-ariadne's NewOpenTelemetryTracer, which runs its provider with
// no external exporter rather than pull in one): spans are still
// created, sampled, and available to SetGlobal-installed downstream
// processors, they're just not shipped anywhere on their own.
func NewTracer(serviceName string, exporter sdktrace.SpanExporter) *Tracer {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("github.com/inferedge/runtimecore/internal/scheduler"),
	}
}

// StartTaskSpan opens a span covering one ScheduledTask's admission ->
// execution -> completion lifecycle (§10.5).
func (t *Tracer) StartTaskSpan(ctx context.Context, taskID string, priority string, workload string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "scheduler.dispatch",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.priority", priority),
			attribute.String("task.workload", workload),
		),
	)
}

// RecordWarmUp adds a span event marking the Budget Engine's warm-up
// transition (§10.5).
func RecordWarmUp(span trace.Span, p95MS float64, sampleCount int) {
	span.AddEvent("budget.warm_up", trace.WithAttributes(
		attribute.Float64("baseline.p95_ms", p95MS),
		attribute.Int("baseline.sample_count", sampleCount),
	))
}

// RecordViolation adds a span event for a Budget Violation (§10.5).
func RecordViolation(span trace.Span, constraint string, measured, budget float64) {
	span.AddEvent("budget.violation", trace.WithAttributes(
		attribute.String("violation.constraint", constraint),
		attribute.Float64("violation.measured", measured),
		attribute.Float64("violation.budget", budget),
	))
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// SetGlobal installs this provider as the process-wide otel default, for
// components that fetch tracers via otel.Tracer(name) rather than holding
// a *Tracer reference.
func (t *Tracer) SetGlobal() {
	otel.SetTracerProvider(t.provider)
}
