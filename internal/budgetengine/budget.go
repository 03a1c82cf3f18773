// Package budgetengine owns the active Budget (C5): resolving adaptive
// profiles against a measured baseline and evaluating sampler readings
// against declared constraints.
package budgetengine

import (
	"sync"
	"time"

	"github.com/inferedge/runtimecore/internal/sampler"
)

// AdaptiveProfile selects the multiplier table used by Resolve (spec §4.5).
type AdaptiveProfile uint8

const (
	ProfileNone AdaptiveProfile = iota
	ProfileConservative
	ProfileBalanced
	ProfilePerformance
)

func (p AdaptiveProfile) String() string {
	switch p {
	case ProfileConservative:
		return "Conservative"
	case ProfileBalanced:
		return "Balanced"
	case ProfilePerformance:
		return "Performance"
	default:
		return "None"
	}
}

// Budget is the declarative contract from spec §3. Pointer fields are
// optional ("set" iff non-nil).
type Budget struct {
	P95MS            *float64
	DrainPer600S     *float64
	MaxThermalLevel  *sampler.ThermalLevel
	MemoryCeilingMB  *float64
	AdaptiveProfile  AdaptiveProfile
}

// Resolved reports whether the three adaptively-resolvable fields have
// been filled from a baseline (spec §3: "An unresolved adaptive budget
// enforces nothing"). MemoryCeilingMB is never part of adaptive
// resolution (spec §4.5: "Memory is always unset after resolution").
func (b Budget) Resolved() bool {
	return b.P95MS != nil && b.DrainPer600S != nil && b.MaxThermalLevel != nil
}

// MeasuredBaseline is captured once per Scheduler lifecycle at warm-up
// (spec §3).
type MeasuredBaseline struct {
	P95MS        float64
	DrainPer600S float64 // 0 if unavailable
	HasDrain     bool
	ThermalLevel sampler.ThermalLevel
	RSSMB        float64
	SampleCount  int
	At           time.Time
}

// profileMultipliers is the table from spec §4.5.
type profileMultipliers struct {
	p95Mult   float64
	drainMult float64
	// thermalCap(current) returns the capped thermal level.
	thermalCap func(current sampler.ThermalLevel) sampler.ThermalLevel
}

var tables = map[AdaptiveProfile]profileMultipliers{
	ProfileConservative: {
		p95Mult:   2.0,
		drainMult: 0.6,
		thermalCap: func(current sampler.ThermalLevel) sampler.ThermalLevel {
			if current > sampler.ThermalFair {
				return current
			}
			return sampler.ThermalFair
		},
	},
	ProfileBalanced: {
		p95Mult:   1.5,
		drainMult: 1.0,
		thermalCap: func(current sampler.ThermalLevel) sampler.ThermalLevel {
			return sampler.ThermalFair
		},
	},
	ProfilePerformance: {
		p95Mult:   1.1,
		drainMult: 1.5,
		thermalCap: func(current sampler.ThermalLevel) sampler.ThermalLevel {
			return sampler.ThermalCritical
		},
	},
}

// Resolve applies the fixed multiplier table from spec §4.5. Memory is
// always left unset after resolution (observe-only).
func Resolve(profile AdaptiveProfile, baseline MeasuredBaseline) Budget {
	table, ok := tables[profile]
	if !ok {
		return Budget{AdaptiveProfile: profile}
	}
	p95 := round(baseline.P95MS * table.p95Mult)
	drain := round(baseline.DrainPer600S * table.drainMult)
	thermal := table.thermalCap(baseline.ThermalLevel)
	return Budget{
		P95MS:           &p95,
		DrainPer600S:    &drain,
		MaxThermalLevel: &thermal,
		MemoryCeilingMB: nil,
		AdaptiveProfile: profile,
	}
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}

// Constraint identifies which budget dimension a Violation concerns
// (spec §3).
type Constraint uint8

const (
	ConstraintP95 Constraint = iota
	ConstraintDrain
	ConstraintThermal
	ConstraintMemory
)

func (c Constraint) String() string {
	switch c {
	case ConstraintP95:
		return "P95"
	case ConstraintDrain:
		return "Drain"
	case ConstraintThermal:
		return "Thermal"
	case ConstraintMemory:
		return "Memory"
	default:
		return "Unknown"
	}
}

// Violation is emitted by Evaluate when a constraint is exceeded
// (spec §3).
type Violation struct {
	Constraint     Constraint
	Measured       float64
	Budget         float64
	MitigationText string
	Mitigated      bool
	ObserveOnly    bool
	At             time.Time
}

func mitigationFor(c Constraint) string {
	switch c {
	case ConstraintP95:
		return "reduce frequency"
	case ConstraintDrain:
		return "lower quality"
	case ConstraintThermal:
		return "pause high-priority"
	case ConstraintMemory:
		return "observe only"
	default:
		return ""
	}
}

// Readings is the sampler snapshot Evaluate compares a Budget against.
type Readings struct {
	P95MS        float64
	DrainPer600S float64
	HasDrain     bool
	ThermalLevel sampler.ThermalLevel
	RSSMB        float64
}

// Engine owns the active Budget under a mutex (spec §4.5, "Owns the
// active Budget").
//
// Grounded on the teacher's escalation/severity.go ComputeSeverity /
// TargetState shape (iterate fields, compare against thresholds) and
// config.go's Validate() aggregate-errors style for ValidationWarnings.
type Engine struct {
	mu     sync.Mutex
	active Budget
}

// New returns an Engine with an empty (no-op) Budget.
func New() *Engine {
	return &Engine{}
}

// Set replaces the active budget.
func (e *Engine) Set(b Budget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = b
}

// Get returns the active budget.
func (e *Engine) Get() Budget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Evaluate compares each set field of the active budget against readings,
// returning one Violation per exceeded constraint (spec §4.5).
func (e *Engine) Evaluate(r Readings, now time.Time) []Violation {
	b := e.Get()
	var out []Violation

	if b.P95MS != nil && r.P95MS > *b.P95MS {
		out = append(out, Violation{
			Constraint: ConstraintP95, Measured: r.P95MS, Budget: *b.P95MS,
			MitigationText: mitigationFor(ConstraintP95), At: now,
		})
	}
	if b.DrainPer600S != nil && r.HasDrain && r.DrainPer600S > *b.DrainPer600S {
		out = append(out, Violation{
			Constraint: ConstraintDrain, Measured: r.DrainPer600S, Budget: *b.DrainPer600S,
			MitigationText: mitigationFor(ConstraintDrain), At: now,
		})
	}
	if b.MaxThermalLevel != nil && r.ThermalLevel > *b.MaxThermalLevel {
		out = append(out, Violation{
			Constraint: ConstraintThermal, Measured: float64(r.ThermalLevel), Budget: float64(*b.MaxThermalLevel),
			MitigationText: mitigationFor(ConstraintThermal), At: now,
		})
	}
	if b.MemoryCeilingMB != nil && r.RSSMB > *b.MemoryCeilingMB {
		out = append(out, Violation{
			Constraint: ConstraintMemory, Measured: r.RSSMB, Budget: *b.MemoryCeilingMB,
			MitigationText: mitigationFor(ConstraintMemory), ObserveOnly: true, At: now,
		})
	}
	return out
}

// ValidationWarnings returns non-fatal warnings for suspiciously tight
// budget values (spec §4.5).
func ValidationWarnings(b Budget) []string {
	var warnings []string
	if b.P95MS != nil && *b.P95MS < 500 {
		warnings = append(warnings, "p95_ms < 500")
	}
	if b.DrainPer600S != nil && *b.DrainPer600S < 0.5 {
		warnings = append(warnings, "drain_per_600s < 0.5")
	}
	if b.MemoryCeilingMB != nil && *b.MemoryCeilingMB < 2000 {
		warnings = append(warnings, "memory_ceiling_mb < 2000")
	}
	return warnings
}
