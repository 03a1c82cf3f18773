package telemetry_test

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/telemetry"
)

func TestViolationBusRegistrationOrder(t *testing.T) {
	bus := telemetry.NewViolationBus()
	var order []int
	bus.Subscribe(func(budgetengine.Violation) { order = append(order, 1) })
	bus.Subscribe(func(budgetengine.Violation) { order = append(order, 2) })
	bus.Publish(budgetengine.Violation{Constraint: budgetengine.ConstraintThermal, At: time.Now()})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v, want [1 2]", order)
	}
}

func TestMetricsListenerIncrementsCounter(t *testing.T) {
	m := telemetry.NewMetrics(nil)
	listener := m.MetricsListener()
	listener(budgetengine.Violation{Constraint: budgetengine.ConstraintMemory, At: time.Now()})
	var pb dto.Metric
	if err := m.ViolationsTotal.WithLabelValues("Memory").Write(&pb); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if got := pb.GetCounter().GetValue(); got != 1 {
		t.Fatalf("violations_total{constraint=Memory} = %v, want 1", got)
	}
}
