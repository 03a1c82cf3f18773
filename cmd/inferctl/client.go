package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/inferedge/runtimecore/internal/control"
)

// sendControlRequest dials the control socket, sends req, and decodes one
// newline-delimited JSON response. Mirrors the wire protocol implemented
// by internal/control/server.go.
func sendControlRequest(socketPath string, req control.Request) (control.Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return control.Response{}, fmt.Errorf("dial %q: %w", socketPath, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		return control.Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return control.Response{}, fmt.Errorf("write request: %w", err)
	}

	var resp control.Response
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return control.Response{}, fmt.Errorf("read response: %w", err)
		}
		return control.Response{}, fmt.Errorf("no response from %q", socketPath)
	}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return control.Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}
