package framequeue_test

import (
	"testing"

	"github.com/inferedge/runtimecore/internal/framequeue"
)

func TestBackpressureDropsNine(t *testing.T) {
	q := framequeue.New()
	f, ok := q.Dequeue()
	if ok {
		t.Fatalf("Dequeue on empty slot = %+v, true; want false", f)
	}
	q.Enqueue(framequeue.Frame{Width: 1})
	_, ok = q.Dequeue() // marks in_progress, empties the slot
	if !ok {
		t.Fatalf("first Dequeue should succeed")
	}
	// in_progress is now true and the slot is empty; enqueue 10 frames as
	// in spec §8 scenario 4 — the first is accepted, the remaining nine
	// overwrite the slot and are counted as drops.
	for i := 0; i < 10; i++ {
		q.Enqueue(framequeue.Frame{Width: i + 10})
	}
	if q.DroppedCount() != 9 {
		t.Fatalf("DroppedCount = %d, want 9", q.DroppedCount())
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("Dequeue while in_progress should return false")
	}
	q.MarkDone()
	got, ok := q.Dequeue()
	if !ok || got.Width != 19 {
		t.Fatalf("got %+v, want the 10th enqueued frame (width=19)", got)
	}
}

func TestResetPreservesDroppedCount(t *testing.T) {
	q := framequeue.New()
	q.Enqueue(framequeue.Frame{})
	q.Dequeue()
	q.Enqueue(framequeue.Frame{}) // accepted into the empty slot, still in_progress
	q.Enqueue(framequeue.Frame{}) // dropped: slot occupied while in_progress
	if q.DroppedCount() != 1 {
		t.Fatalf("DroppedCount = %d, want 1", q.DroppedCount())
	}
	q.Reset()
	if q.DroppedCount() != 1 {
		t.Fatalf("DroppedCount after Reset = %d, want 1 (preserved)", q.DroppedCount())
	}
	q.ResetCounters()
	if q.DroppedCount() != 0 {
		t.Fatalf("DroppedCount after ResetCounters = %d, want 0", q.DroppedCount())
	}
}
