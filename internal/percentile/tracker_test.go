package percentile_test

import (
	"testing"

	"github.com/inferedge/runtimecore/internal/percentile"
)

func TestEmptyTrackerReturnsZero(t *testing.T) {
	tr := percentile.New()
	if got := tr.Quantile(0.95); got != 0.0 {
		t.Errorf("Quantile on empty tracker = %v, want 0.0", got)
	}
	if got := tr.Count(); got != 0 {
		t.Errorf("Count on empty tracker = %v, want 0", got)
	}
}

func TestRecordAndQuantileBounds(t *testing.T) {
	tr := percentile.New()
	for i := 0; i < 20; i++ {
		tr.Record(float64(100 + i))
	}
	if tr.Count() != 20 {
		t.Fatalf("Count = %d, want 20", tr.Count())
	}
	p95 := tr.P95()
	if p95 < 100 || p95 > 119 {
		t.Errorf("P95 = %v, want within [100,119]", p95)
	}
}

func TestNegativeSamplesRejected(t *testing.T) {
	tr := percentile.New()
	tr.Record(-1)
	if tr.Count() != 0 {
		t.Errorf("negative sample was recorded, Count = %d", tr.Count())
	}
}

func TestRingEvictsOldest(t *testing.T) {
	tr := percentile.New()
	for i := 0; i < percentile.Capacity+10; i++ {
		tr.Record(float64(i))
	}
	if tr.Count() != percentile.Capacity {
		t.Fatalf("Count = %d, want %d", tr.Count(), percentile.Capacity)
	}
	// the 10 oldest (0..9) should have been evicted; minimum quantile
	// reads should reflect that.
	if got := tr.Quantile(0); got < 10 {
		t.Errorf("Quantile(0) = %v, want >= 10 (oldest samples evicted)", got)
	}
}

func TestResetClearsState(t *testing.T) {
	tr := percentile.New()
	for i := 0; i < 5; i++ {
		tr.Record(float64(i))
	}
	tr.Reset()
	if tr.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", tr.Count())
	}
	if got := tr.Quantile(0.5); got != 0.0 {
		t.Errorf("Quantile after Reset = %v, want 0.0", got)
	}
	tr.Reset() // idempotent
	if tr.Count() != 0 {
		t.Errorf("Count after second Reset = %d, want 0", tr.Count())
	}
}
