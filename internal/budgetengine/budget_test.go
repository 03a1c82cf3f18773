package budgetengine_test

import (
	"testing"
	"time"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/sampler"
)

func TestResolveBalancedP95(t *testing.T) {
	baseline := budgetengine.MeasuredBaseline{P95MS: 118, ThermalLevel: sampler.ThermalNominal}
	b := budgetengine.Resolve(budgetengine.ProfileBalanced, baseline)
	if b.P95MS == nil || *b.P95MS != 177 {
		t.Fatalf("p95 = %v, want 177", b.P95MS)
	}
	if b.MemoryCeilingMB != nil {
		t.Errorf("memory ceiling = %v, want unset", *b.MemoryCeilingMB)
	}
}

func TestResolveMemoryAlwaysUnset(t *testing.T) {
	for _, p := range []budgetengine.AdaptiveProfile{
		budgetengine.ProfileConservative, budgetengine.ProfileBalanced, budgetengine.ProfilePerformance,
	} {
		b := budgetengine.Resolve(p, budgetengine.MeasuredBaseline{P95MS: 100})
		if b.MemoryCeilingMB != nil {
			t.Errorf("profile %v: memory ceiling set, want unset", p)
		}
	}
}

func TestEvaluateThermalViolation(t *testing.T) {
	e := budgetengine.New()
	maxLevel := sampler.ThermalFair
	e.Set(budgetengine.Budget{MaxThermalLevel: &maxLevel})
	violations := e.Evaluate(budgetengine.Readings{ThermalLevel: sampler.ThermalSerious}, time.Now())
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	v := violations[0]
	if v.Constraint != budgetengine.ConstraintThermal || v.ObserveOnly {
		t.Errorf("violation = %+v, want non-observe-only Thermal", v)
	}
}

func TestEvaluateMemoryViolationIsObserveOnly(t *testing.T) {
	e := budgetengine.New()
	ceiling := 500.0
	e.Set(budgetengine.Budget{MemoryCeilingMB: &ceiling})
	violations := e.Evaluate(budgetengine.Readings{RSSMB: 600}, time.Now())
	if len(violations) != 1 || !violations[0].ObserveOnly {
		t.Fatalf("violations = %+v, want one observe_only=true", violations)
	}
}

func TestValidationWarnings(t *testing.T) {
	p95 := 400.0
	b := budgetengine.Budget{P95MS: &p95}
	warnings := budgetengine.ValidationWarnings(b)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
}
