package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferedge/runtimecore/internal/control"
)

const defaultSocketPath = "/run/inferedge/runtimecore.sock"

func socketFlag(cmd *cobra.Command) *string {
	var path string
	cmd.Flags().StringVar(&path, "socket", defaultSocketPath, "Path to the control socket")
	return &path
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running core's scheduler status",
	}
	socket := socketFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		resp, err := sendControlRequest(*socket, control.Request{Cmd: "status"})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("status: %s", resp.Error)
		}
		fmt.Printf("queue_depth=%d p50_ms=%.1f p95_ms=%.1f p99_ms=%.1f budget_resolved=%v adaptive_profile=%s\n",
			resp.QueueDepth, resp.P50MS, resp.P95MS, resp.P99MS, resp.BudgetResolved, resp.AdaptiveProfile)
		return nil
	}
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks on a running core",
	}
	socket := socketFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		resp, err := sendControlRequest(*socket, control.Request{Cmd: "list"})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("list: %s", resp.Error)
		}
		if len(resp.Tasks) == 0 {
			fmt.Println("no queued tasks")
			return nil
		}
		for _, t := range resp.Tasks {
			fmt.Printf("%s  priority=%-7s workload=%-7s status=%-10s time_in_state=%s\n",
				t.ID, t.Priority, t.WorkloadTag, t.Status, t.TimeInState)
		}
		return nil
	}
	return cmd
}

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a queued task on a running core",
		Args:  cobra.ExactArgs(1),
	}
	socket := socketFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		resp, err := sendControlRequest(*socket, control.Request{Cmd: "cancel", TaskID: args[0]})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("cancel: %s", resp.Error)
		}
		fmt.Printf("cancelled %s\n", args[0])
		return nil
	}
	return cmd
}

func newPinProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin-profile <none|conservative|balanced|performance>",
		Short: "Pin the adaptive profile on a running core",
		Args:  cobra.ExactArgs(1),
	}
	socket := socketFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		resp, err := sendControlRequest(*socket, control.Request{Cmd: "pin_profile", Profile: args[0]})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("pin-profile: %s", resp.Error)
		}
		fmt.Printf("adaptive_profile=%s\n", resp.AdaptiveProfile)
		return nil
	}
	return cmd
}
