// Package control — server.go
//
// Unix domain socket server exposing the Runtime Supervision Core to a
// local operator CLI (supplemented feature §12.4: "operators need a way
// to inspect and steer a running core without restarting it").
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: /run/inferedge/runtimecore.sock (configurable).
// Permissions: 0600.
//
// Commands (JSON request -> JSON response):
//
//	{"cmd":"status"}
//	  -> Returns queue depth, p50/p95/p99, whether the active budget is
//	     resolved, and the active budget's adaptive profile.
//
//	{"cmd":"list"}
//	  -> Returns every currently queued task with its priority/workload/
//	     time-in-state.
//
//	{"cmd":"cancel","task_id":"..."}
//	  -> Cancels a Queued task. Running tasks cannot be cancelled this way
//	     (spec §4.6: only Queued tasks may be cancelled from the queue).
//
//	{"cmd":"pin_profile","profile":"performance"}
//	  -> Pins the adaptive profile used on the next warm-up resolution.
//
// Grounded on the teacher's internal/operator/server.go: same
// accept-loop/semaphore/handleConn shape, same newline-delimited JSON
// wire format, repurposed from PID state overrides to scheduler
// introspection and control.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/inferedge/runtimecore/internal/budgetengine"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// QueuedTaskView is a read-only snapshot of one queued task.
type QueuedTaskView struct {
	ID          string `json:"id"`
	Priority    string `json:"priority"`
	WorkloadTag string `json:"workload_tag"`
	Status      string `json:"status"`
	TimeInState string `json:"time_in_state"`
}

// SchedulerView is the interface the control server uses to inspect and
// steer the Scheduler. Implemented by *scheduler.Scheduler via the
// adapter in adapter.go, keeping this package free of a scheduler
// import cycle concern and independently testable with a fake.
type SchedulerView interface {
	QueueLen() int
	ListQueued() []QueuedTaskView
	Cancel(id string) bool
	ActiveBudget() budgetengine.Budget
	SetProfile(profile budgetengine.AdaptiveProfile) error
	Percentiles() (p50, p95, p99 float64)
}

// Request is the JSON structure for control commands.
type Request struct {
	Cmd     string `json:"cmd"`               // status | list | cancel | pin_profile
	TaskID  string `json:"task_id,omitempty"` // target task for cancel
	Profile string `json:"profile,omitempty"` // target profile for pin_profile
}

// Response is the JSON structure for control command responses.
type Response struct {
	OK              bool             `json:"ok"`
	Error           string           `json:"error,omitempty"`
	QueueDepth      int              `json:"queue_depth,omitempty"`
	P50MS           float64          `json:"p50_ms,omitempty"`
	P95MS           float64          `json:"p95_ms,omitempty"`
	P99MS           float64          `json:"p99_ms,omitempty"`
	BudgetResolved  bool             `json:"budget_resolved,omitempty"`
	AdaptiveProfile string           `json:"adaptive_profile,omitempty"`
	Tasks           []QueuedTaskView `json:"tasks,omitempty"`
	Cancelled       bool             `json:"cancelled,omitempty"`
}

// Server is the control Unix domain socket server.
type Server struct {
	socketPath string
	view       SchedulerView
	log        *zap.Logger
	sem        chan struct{}
}

// NewServer creates a control Server.
func NewServer(socketPath string, view SchedulerView, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		socketPath: socketPath,
		view:       view,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the control socket server. Removes any stale
// socket file before binding. Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("control: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("control: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("control socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("control: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("control: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("control: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	s.writeResponse(conn, s.dispatch(req))
}

func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "status":
		return s.cmdStatus()
	case "list":
		return s.cmdList()
	case "cancel":
		return s.cmdCancel(req)
	case "pin_profile":
		return s.cmdPinProfile(req)
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdStatus() Response {
	p50, p95, p99 := s.view.Percentiles()
	b := s.view.ActiveBudget()
	return Response{
		OK:              true,
		QueueDepth:      s.view.QueueLen(),
		P50MS:           p50,
		P95MS:           p95,
		P99MS:           p99,
		BudgetResolved:  b.Resolved(),
		AdaptiveProfile: b.AdaptiveProfile.String(),
	}
}

func (s *Server) cmdList() Response {
	return Response{OK: true, Tasks: s.view.ListQueued()}
}

func (s *Server) cmdCancel(req Request) Response {
	if req.TaskID == "" {
		return Response{OK: false, Error: "task_id required for cancel"}
	}
	ok := s.view.Cancel(req.TaskID)
	if !ok {
		return Response{OK: false, Error: fmt.Sprintf("task %q not found or not cancellable", req.TaskID)}
	}
	return Response{OK: true, Cancelled: true}
}

func (s *Server) cmdPinProfile(req Request) Response {
	profile, err := parseProfile(req.Profile)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	if err := s.view.SetProfile(profile); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, AdaptiveProfile: profile.String()}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func parseProfile(name string) (budgetengine.AdaptiveProfile, error) {
	switch name {
	case "none":
		return budgetengine.ProfileNone, nil
	case "conservative":
		return budgetengine.ProfileConservative, nil
	case "balanced":
		return budgetengine.ProfileBalanced, nil
	case "performance":
		return budgetengine.ProfilePerformance, nil
	default:
		return budgetengine.ProfileNone, fmt.Errorf("unknown profile %q (valid: none conservative balanced performance)", name)
	}
}
