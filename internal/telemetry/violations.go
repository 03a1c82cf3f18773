package telemetry

import "github.com/inferedge/runtimecore/internal/budgetengine"

// ViolationBus fans a Violation out to listeners in registration order
// (spec §5), decoupling the Scheduler's budget-evaluation loop from
// whatever consumes the events (metrics, the control socket, tracing).
type ViolationBus struct {
	listeners []func(budgetengine.Violation)
}

// NewViolationBus returns an empty bus.
func NewViolationBus() *ViolationBus {
	return &ViolationBus{}
}

// Subscribe registers a listener. Listeners must not block (spec §4.6).
func (b *ViolationBus) Subscribe(fn func(budgetengine.Violation)) {
	b.listeners = append(b.listeners, fn)
}

// Publish invokes every listener synchronously, in registration order.
func (b *ViolationBus) Publish(v budgetengine.Violation) {
	for _, fn := range b.listeners {
		fn(v)
	}
}

// MetricsListener returns a Scheduler ViolationListener-compatible
// function that increments Metrics.ViolationsTotal.
func (m *Metrics) MetricsListener() func(budgetengine.Violation) {
	return func(v budgetengine.Violation) {
		m.ViolationsTotal.WithLabelValues(v.Constraint.String()).Inc()
	}
}
