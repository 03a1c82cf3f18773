package worker

import (
	"math"
	"testing"
)

func TestUniformLogitsGiveZeroConfidence(t *testing.T) {
	logits := make([]float32, 16)
	c := confidenceFromLogits(logits, 16)
	if math.Abs(c) > 1e-6 {
		t.Errorf("uniform logits confidence = %v, want ~0", c)
	}
}

func TestConfidenceBounded(t *testing.T) {
	logits := []float32{100, -100, -100, -100}
	c := confidenceFromLogits(logits, 4)
	if c < 0 || c > 1 {
		t.Errorf("confidence = %v, want in [0,1]", c)
	}
	if c < 0.9 {
		t.Errorf("peaked logits confidence = %v, want close to 1", c)
	}
}

func TestHandoffSignalRequiresThreeSamples(t *testing.T) {
	a := newConfidenceAccumulator(0.9)
	peaked := []float32{100, -100, -100, -100}
	a.observe(peaked, 4)
	a.observe(peaked, 4)
	if a.handoffSignal() {
		t.Errorf("handoffSignal true before 3 samples")
	}
	a.observe(peaked, 4)
	// peaked logits -> high confidence -> mean should exceed 0.9 -> no
	// handoff signal despite 3+ samples.
	if a.handoffSignal() {
		t.Errorf("handoffSignal true with high-confidence samples")
	}

	// uniform logits -> confidence 0 -> mean below threshold; the signal
	// stays off until the third sample.
	low := newConfidenceAccumulator(0.9)
	uniform := []float32{0, 0, 0, 0}
	low.observe(uniform, 4)
	low.observe(uniform, 4)
	if low.handoffSignal() {
		t.Errorf("handoffSignal true with low confidence before 3 samples")
	}
	low.observe(uniform, 4)
	if !low.handoffSignal() {
		t.Errorf("handoffSignal false with low confidence after 3 samples")
	}
}

func TestAccumulatorDisabledWhenThresholdZero(t *testing.T) {
	var a *confidenceAccumulator
	if a.enabled() {
		t.Errorf("nil accumulator reports enabled")
	}
	a = newConfidenceAccumulator(0)
	if a.enabled() {
		t.Errorf("zero-threshold accumulator reports enabled")
	}
}
