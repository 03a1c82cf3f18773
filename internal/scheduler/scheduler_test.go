package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/scheduler"
)

func TestFIFOWithinPriority(t *testing.T) {
	s := scheduler.New(nil, budgetengine.New(), scheduler.Samplers{}, budgetengine.ProfileNone)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		n := name
		s.Submit(scheduler.PriorityNormal, scheduler.WorkloadText, nil, func() (any, error) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil, nil
		})
	}
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("tasks did not complete in time, got %v", order)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if order[0] != "A" || order[1] != "B" {
		t.Fatalf("completion order = %v, want A,B,... first", order)
	}
}

func TestCancelQueuedTaskNeverRuns(t *testing.T) {
	s := scheduler.New(nil, budgetengine.New(), scheduler.Samplers{}, budgetengine.ProfileNone)
	ran := false
	task := s.Submit(scheduler.PriorityNormal, scheduler.WorkloadText, nil, func() (any, error) {
		ran = true
		return nil, nil
	})
	if !s.Cancel(task.ID) {
		t.Fatalf("Cancel on Queued task returned false")
	}
	if task.Status() != scheduler.StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", task.Status())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	if ran {
		t.Fatalf("cancelled task's payload executed")
	}
}

func TestPreemptionBoundaryRunningTaskNotPreempted(t *testing.T) {
	s := scheduler.New(nil, budgetengine.New(), scheduler.Samplers{}, budgetengine.ProfileNone)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	s.Submit(scheduler.PriorityLow, scheduler.WorkloadText, nil, func() (any, error) {
		close(started)
		<-release
		mu.Lock()
		order = append(order, "L")
		mu.Unlock()
		return nil, nil
	})
	<-started
	s.Submit(scheduler.PriorityHigh, scheduler.WorkloadText, nil, func() (any, error) {
		mu.Lock()
		order = append(order, "H")
		mu.Unlock()
		return nil, nil
	})
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("tasks did not complete, got %v", order)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if order[0] != "L" || order[1] != "H" {
		t.Fatalf("order = %v, want [L, H] (already-running task not preempted)", order)
	}
}
