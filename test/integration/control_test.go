package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/inferedge/runtimecore/internal/budgetengine"
	"github.com/inferedge/runtimecore/internal/control"
	"github.com/inferedge/runtimecore/internal/scheduler"
)

// TestControlSocketStatusAndCancel drives the control server against a
// live Scheduler over a real Unix domain socket: a queued task is
// listed, cancelled via the wire protocol, and status is read back —
// the same path cmd/inferctl's status/list/cancel subcommands use
// (supplemented feature §12.4).
func TestControlSocketStatusAndCancel(t *testing.T) {
	budget := budgetengine.New()
	sched := scheduler.New(nil, budget, scheduler.Samplers{}, budgetengine.ProfileNone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	release := make(chan struct{})
	sched.Submit(scheduler.PriorityHigh, scheduler.WorkloadText, nil, func() (any, error) {
		close(block)
		<-release
		return nil, nil
	})
	task := sched.Submit(scheduler.PriorityNormal, scheduler.WorkloadVision, nil, func() (any, error) {
		return nil, nil
	})

	go sched.Run(ctx)
	defer sched.Stop()
	<-block // first task is now Running, second is still Queued
	defer close(release)

	view := control.NewSchedulerView(sched)
	sockPath := filepath.Join(t.TempDir(), "runtimecore.sock")
	srv := control.NewServer(sockPath, view, nil)

	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(srvCtx) }()

	waitForSocket(t, sockPath)

	listResp := roundTrip(t, sockPath, control.Request{Cmd: "list"})
	if !listResp.OK || len(listResp.Tasks) != 1 || listResp.Tasks[0].ID != task.ID.String() {
		t.Fatalf("list response = %+v, want one task matching %s", listResp, task.ID)
	}

	cancelResp := roundTrip(t, sockPath, control.Request{Cmd: "cancel", TaskID: task.ID.String()})
	if !cancelResp.OK || !cancelResp.Cancelled {
		t.Fatalf("cancel response = %+v, want ok+cancelled", cancelResp)
	}

	statusResp := roundTrip(t, sockPath, control.Request{Cmd: "status"})
	if !statusResp.OK || statusResp.QueueDepth != 0 {
		t.Fatalf("status response = %+v, want queue_depth=0 after cancel", statusResp)
	}

	srvCancel()
	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("control server did not shut down after context cancel")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("control socket %q never became ready", path)
}

func roundTrip(t *testing.T, sockPath string, req control.Request) control.Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("write request: %v", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("no response: %v", scanner.Err())
	}
	var resp control.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}
