package control

import (
	"github.com/google/uuid"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/scheduler"
)

// schedulerAdapter narrows *scheduler.Scheduler down to SchedulerView,
// translating between the control wire format (string task IDs, string
// profile names already parsed by the caller) and the scheduler's native
// types.
type schedulerAdapter struct {
	s *scheduler.Scheduler
}

// NewSchedulerView wraps a Scheduler for use by the control Server.
func NewSchedulerView(s *scheduler.Scheduler) SchedulerView {
	return &schedulerAdapter{s: s}
}

func (a *schedulerAdapter) QueueLen() int { return a.s.QueueLen() }

func (a *schedulerAdapter) ListQueued() []QueuedTaskView {
	tasks := a.s.ListQueued()
	out := make([]QueuedTaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, QueuedTaskView{
			ID:          t.ID.String(),
			Priority:    t.Priority.String(),
			WorkloadTag: t.WorkloadTag.String(),
			Status:      t.Status().String(),
			TimeInState: t.TimeInState().String(),
		})
	}
	return out
}

func (a *schedulerAdapter) Cancel(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return a.s.Cancel(parsed)
}

func (a *schedulerAdapter) ActiveBudget() budgetengine.Budget {
	return a.s.ActiveBudget()
}

func (a *schedulerAdapter) SetProfile(profile budgetengine.AdaptiveProfile) error {
	a.s.SetProfile(profile)
	return nil
}

func (a *schedulerAdapter) Percentiles() (p50, p95, p99 float64) {
	t := a.s.Tracker()
	return t.P50(), t.P95(), t.P99()
}
