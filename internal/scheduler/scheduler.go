package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/percentile"
	"github.com/inferedge/runtimecore/internal/sampler"
	"github.com/inferedge/runtimecore/internal/telemetry"
)

// warmupSampleCount is the one-shot warm-up threshold (spec §4.6, §8:
// "Exactly 20 samples trigger warm-up exactly once").
const warmupSampleCount = 20

// Samplers bundles the concurrent signal samplers the Scheduler reads
// from when evaluating budgets and capturing the warm-up baseline
// (spec §3, §4.6).
type Samplers struct {
	Thermal  *sampler.ThermalSampler
	Battery  *sampler.BatterySampler
	Resource *sampler.ResourceSampler
}

// ViolationListener is invoked synchronously in registration order
// whenever the Budget Engine reports a Violation (spec §4.6, §5:
// "Violation listeners are invoked in registration order").
type ViolationListener func(budgetengine.Violation)

// Scheduler is the hub component (C6): priority queue, admission,
// execution, cancellation, warm-up baseline capture, violation dispatch.
//
// Grounded on the teacher's internal/kernel/events.go Processor (a
// goroutine-owned channel draining loop, ctx-cancellable) for the driver
// task shape.
type Scheduler struct {
	log        *zap.Logger
	queue      *Queue
	tracker    *percentile.Tracker
	budget     *budgetengine.Engine
	samplers   Samplers
	profile    budgetengine.AdaptiveProfile

	mu          sync.Mutex
	warmedUp    bool
	listeners   []ViolationListener
	openViolations map[budgetengine.Constraint]*budgetengine.Violation
	tracer      *telemetry.Tracer
	metrics     *telemetry.Metrics

	stop chan struct{}
	done chan struct{}
}

// New constructs a Scheduler. Call Run to start its cooperative driver
// loop; samplers are expected to already be running (spec §3: "Samplers
// start when the Scheduler is constructed").
func New(log *zap.Logger, budget *budgetengine.Engine, samplers Samplers, profile budgetengine.AdaptiveProfile) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		log:            log,
		queue:          NewQueue(),
		tracker:        percentile.New(),
		budget:         budget,
		samplers:       samplers,
		profile:        profile,
		openViolations: make(map[budgetengine.Constraint]*budgetengine.Violation),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Submit enqueues a new task.
func (s *Scheduler) Submit(priority Priority, tag WorkloadTag, deadline *time.Time, payload Payload) *ScheduledTask {
	return s.queue.Submit(priority, tag, deadline, payload)
}

// Cancel removes a Queued task from the queue and marks it Cancelled.
// It returns false for a task that is no longer queued: a Running task
// is left untouched, and stopping it is the payload's own responsibility
// via a context or StreamSession flag threaded through its closure.
func (s *Scheduler) Cancel(id [16]byte) bool {
	return s.queue.Cancel(id)
}

// OnViolation registers a listener, invoked synchronously in
// registration order (spec §5).
func (s *Scheduler) OnViolation(l ViolationListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SetTracer attaches a Tracer so every dispatched task gets a span
// covering admission through completion, with warm-up and violation
// events recorded on it. Call before Run; nil disables tracing (the
// default).
func (s *Scheduler) SetTracer(t *telemetry.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = t
}

// SetMetrics attaches a Metrics so dispatch counts, task latency, queue
// depth, and sampler readings are exported on /metrics (§10.5). Call
// before Run; nil disables metrics export (the default).
func (s *Scheduler) SetMetrics(m *telemetry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Run drives the cooperative dequeue-execute-record loop until ctx is
// cancelled or Stop is called. It blocks; callers run it in its own
// goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}
		task := s.queue.Pop()
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		s.dispatch(ctx, task)
	}
}

// Stop signals Run to exit and waits for it to return.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// dispatch evaluates budgets, runs the task's payload, records latency,
// and advances warm-up (spec §4.6).
func (s *Scheduler) dispatch(ctx context.Context, task *ScheduledTask) {
	s.mu.Lock()
	tracer := s.tracer
	metrics := s.metrics
	s.mu.Unlock()

	var span trace.Span
	if tracer != nil {
		ctx, span = tracer.StartTaskSpan(ctx, task.ID.String(), task.Priority.String(), task.WorkloadTag.String())
		defer span.End()
	}

	s.evaluateBudget(span)
	if metrics != nil {
		metrics.QueueDepth.Set(float64(s.queue.Len()))
	}

	if !task.transition(StatusRunning) {
		return // already cancelled between pop and dispatch
	}

	if metrics != nil {
		metrics.TasksDispatchedTotal.WithLabelValues(task.WorkloadTag.String()).Inc()
	}

	start := time.Now()
	result, err := s.runPayload(task)
	elapsed := time.Since(start)

	latencyMS := float64(elapsed.Milliseconds())
	s.tracker.Record(latencyMS)
	if metrics != nil {
		metrics.TaskLatencyMS.Observe(latencyMS)
	}

	if err != nil {
		task.complete(StatusFailed, nil, err)
		if metrics != nil {
			metrics.TasksFailedTotal.WithLabelValues(task.WorkloadTag.String()).Inc()
		}
	} else {
		task.complete(StatusCompleted, result, nil)
	}

	s.maybeWarmUp(span)
	s.reconcileViolations()
}

// runPayload executes task.Payload, converting a panic into a Failed
// result with the cause preserved (spec §4.6: "Worker panics/exceptions
// propagate as Failed to the caller with the cause preserved").
func (s *Scheduler) runPayload(task *ScheduledTask) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task payload panicked", zap.Stringer("task_id", task.ID), zap.Any("recover", r))
			err = &panicError{recovered: r}
		}
	}()
	if task.Payload == nil {
		return nil, nil
	}
	return task.Payload()
}

type panicError struct{ recovered any }

func (e *panicError) Error() string { return "task payload panicked" }

// maybeWarmUp captures a MeasuredBaseline and resolves the active budget
// exactly once, when the tracker crosses the warm-up sample threshold
// and the active budget declares an adaptive profile (spec §4.6).
func (s *Scheduler) maybeWarmUp(span trace.Span) {
	s.mu.Lock()
	if s.warmedUp || s.profile == budgetengine.ProfileNone {
		s.mu.Unlock()
		return
	}
	if s.tracker.Count() < warmupSampleCount {
		s.mu.Unlock()
		return
	}
	s.warmedUp = true
	s.mu.Unlock()

	baseline := s.captureBaseline()
	resolved := budgetengine.Resolve(s.profile, baseline)
	s.budget.Set(resolved)
	s.log.Info("warm-up baseline captured",
		zap.Float64("p95_ms", baseline.P95MS),
		zap.Int("sample_count", baseline.SampleCount),
	)
	if span != nil {
		telemetry.RecordWarmUp(span, baseline.P95MS, baseline.SampleCount)
	}
}

func (s *Scheduler) captureBaseline() budgetengine.MeasuredBaseline {
	baseline := budgetengine.MeasuredBaseline{
		P95MS:       s.tracker.P95(),
		SampleCount: s.tracker.Count(),
		At:          time.Now(),
	}
	if s.samplers.Thermal != nil {
		baseline.ThermalLevel = s.samplers.Thermal.CurrentLevel()
	}
	if s.samplers.Battery != nil {
		if rate, ok := s.samplers.Battery.CurrentDrainRate(); ok {
			baseline.DrainPer600S = rate
			baseline.HasDrain = true
		}
	}
	if s.samplers.Resource != nil {
		if rss, ok := s.samplers.Resource.CurrentRSSMB(); ok {
			baseline.RSSMB = rss
		}
	}
	return baseline
}

// evaluateBudget runs before dispatching each task (spec §4.6). span may
// be nil when no Tracer is attached.
func (s *Scheduler) evaluateBudget(span trace.Span) {
	readings := budgetengine.Readings{
		P95MS: s.tracker.P95(),
	}
	if s.samplers.Thermal != nil {
		s.samplers.Thermal.Refresh()
		readings.ThermalLevel = s.samplers.Thermal.CurrentLevel()
	}
	if s.samplers.Battery != nil {
		if rate, ok := s.samplers.Battery.CurrentDrainRate(); ok {
			readings.DrainPer600S = rate
			readings.HasDrain = true
		}
	}
	if s.samplers.Resource != nil {
		if rss, ok := s.samplers.Resource.CurrentRSSMB(); ok {
			readings.RSSMB = rss
		}
	}

	s.mu.Lock()
	metrics := s.metrics
	s.mu.Unlock()
	if metrics != nil {
		metrics.ThermalLevel.Set(float64(readings.ThermalLevel))
		if readings.HasDrain {
			metrics.BatteryDrainPer600S.Set(readings.DrainPer600S)
		}
		if readings.RSSMB > 0 {
			metrics.ResourceRSSMB.Set(readings.RSSMB)
		}
	}

	violations := s.budget.Evaluate(readings, time.Now())
	if len(violations) == 0 {
		return
	}

	s.mu.Lock()
	for i := range violations {
		v := violations[i]
		s.openViolations[v.Constraint] = &v
	}
	listeners := append([]ViolationListener(nil), s.listeners...)
	s.mu.Unlock()

	for i := range violations {
		for _, l := range listeners {
			l(violations[i])
		}
		if span != nil {
			telemetry.RecordViolation(span, violations[i].Constraint.String(), violations[i].Measured, violations[i].Budget)
		}
	}
}

// reconcileViolations re-evaluates after a successful iteration and marks
// any prior open Violation as mitigated if the reading returned under
// budget (spec §4.6).
func (s *Scheduler) reconcileViolations() {
	readings := budgetengine.Readings{P95MS: s.tracker.P95()}
	if s.samplers.Thermal != nil {
		readings.ThermalLevel = s.samplers.Thermal.CurrentLevel()
	}
	if s.samplers.Battery != nil {
		if rate, ok := s.samplers.Battery.CurrentDrainRate(); ok {
			readings.DrainPer600S = rate
			readings.HasDrain = true
		}
	}
	if s.samplers.Resource != nil {
		if rss, ok := s.samplers.Resource.CurrentRSSMB(); ok {
			readings.RSSMB = rss
		}
	}
	stillViolating := s.budget.Evaluate(readings, time.Now())
	stillSet := make(map[budgetengine.Constraint]bool, len(stillViolating))
	for _, v := range stillViolating {
		stillSet[v.Constraint] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c, v := range s.openViolations {
		if !stillSet[c] {
			v.Mitigated = true
			delete(s.openViolations, c)
		}
	}
}

// Tracker exposes the Percentile Tracker for read access (e.g. the
// control socket's status command).
func (s *Scheduler) Tracker() *percentile.Tracker { return s.tracker }

// QueueLen reports the number of queued (not yet dispatched) tasks.
func (s *Scheduler) QueueLen() int { return s.queue.Len() }

// ListQueued returns a snapshot of queued tasks, for the control
// socket's list command (supplemented feature §12.4).
func (s *Scheduler) ListQueued() []*ScheduledTask { return s.queue.List() }

// ActiveBudget returns the currently active Budget, for the control
// socket's status command.
func (s *Scheduler) ActiveBudget() budgetengine.Budget { return s.budget.Get() }

// SetProfile pins the adaptive profile used on the next warm-up. It also
// clears the warm-up flag, so if warm-up has already occurred the next
// dispatched task (with the tracker at or above the threshold) captures a
// fresh baseline and re-resolves the active budget; nothing is resolved
// at the time of the call (supplemented feature §12.4: "operator can pin
// a profile at runtime").
func (s *Scheduler) SetProfile(profile budgetengine.AdaptiveProfile) {
	s.mu.Lock()
	s.profile = profile
	s.warmedUp = false
	s.mu.Unlock()
}
