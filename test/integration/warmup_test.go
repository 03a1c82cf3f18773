// Package integration_test exercises the Runtime Supervision Core's
// components wired together the way cmd/inferctl/run.go wires them,
// covering the end-to-end scenarios named in spec §8.
package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/scheduler"
)

// TestWarmUpResolvesBalancedBudget is spec §8 scenario 1: submit an
// adaptive Balanced budget, run 20 tasks recording latencies
// 100ms..119ms, and expect the Scheduler to resolve p95_ms =
// round(p95 * 1.5) with no Violations. The tracker's p95 over 20 samples
// is the element at index floor(20*0.95) = 19, the largest sample
// (about 119ms plus scheduling overhead), so the resolved value lands
// near round(119 * 1.5) = 179.
func TestWarmUpResolvesBalancedBudget(t *testing.T) {
	budget := budgetengine.New()
	sched := scheduler.New(nil, budget, scheduler.Samplers{}, budgetengine.ProfileBalanced)

	var violations []budgetengine.Violation
	sched.OnViolation(func(v budgetengine.Violation) {
		violations = append(violations, v)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)
	defer sched.Stop()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		ms := time.Duration(100+i) * time.Millisecond
		last := i == 19
		sched.Submit(scheduler.PriorityNormal, scheduler.WorkloadText, nil, func() (any, error) {
			time.Sleep(ms)
			if last {
				close(done)
			}
			return nil, nil
		})
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("20 warm-up tasks did not complete in time")
	}

	// maybeWarmUp runs synchronously at the end of dispatch, but the 20th
	// task's own dispatch call is what triggers it — give the driver loop
	// one more iteration to observe the queue is empty and settle.
	// The tracker's own quantile bounds are exercised precisely in
	// percentile.Tracker's tests; here we only need to confirm warm-up
	// actually resolved the budget off the measured baseline (spec §4.5:
	// resolve(Balanced, b).p95 = round(b.p95*1.5)) rather than re-deriving
	// its exact quantile index.
	deadline := time.After(2 * time.Second)
	for {
		b := sched.ActiveBudget()
		if b.Resolved() {
			if b.P95MS == nil {
				t.Fatal("resolved budget has nil P95MS")
			}
			if *b.P95MS < 150 || *b.P95MS > 180 {
				t.Fatalf("resolved p95_ms = %v, want within [150,180] given baseline samples in [100,119]", *b.P95MS)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("budget never resolved after 20 warm-up samples")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none", violations)
	}
}
