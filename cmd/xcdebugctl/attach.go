package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
)

var (
	attachPID         int
	attachSimulatorID string
	attachWaitFor     bool
	attachThenREPL     bool
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach a debug session to a running process",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, hasKind, err := resolveBackendFlag()
		if err != nil {
			return err
		}

		info, err := mgr().CreateSession(cmd.Context(), debugger.CreateSessionOptions{
			PID:         attachPID,
			SimulatorID: attachSimulatorID,
			WaitFor:     attachWaitFor,
			Backend:     kind,
			HasBackend:  hasKind,
		})
		if err != nil {
			return fmt.Errorf("attach: %w", err)
		}

		if err := mgr().SetCurrentSession(info.ID); err != nil {
			return err
		}

		color.Green("attached: session=%s backend=%s pid=%d", info.ID, info.Backend, info.PID)
		if attachThenREPL {
			return runREPL(info.ID)
		}
		return nil
	},
}

func init() {
	attachCmd.Flags().IntVar(&attachPID, "pid", 0, "target process id (required)")
	attachCmd.Flags().StringVar(&attachSimulatorID, "simulator", "", "iOS Simulator udid this session is scoped to")
	attachCmd.Flags().BoolVar(&attachWaitFor, "waitfor", false, "wait for the pid to appear rather than attaching immediately")
	attachCmd.Flags().BoolVar(&attachThenREPL, "repl", false, "drop into an interactive REPL after attaching")
	_ = attachCmd.MarkFlagRequired("pid")

	rootCmd.AddCommand(attachCmd)
}
