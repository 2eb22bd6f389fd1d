package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
)

// sessionFlag is shared by every one-shot subcommand below; an empty value
// resolves to the manager's current session, mirroring runCommand/getStack/
// etc.'s own id-or-current resolution.
var sessionFlag string

func addSessionFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sessionFlag, "session", "", "debug session id (default: current session)")
}

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run one debugger command and print its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := mgr().RunCommand(cmd.Context(), sessionFlag, args[0], debugger.RunCommandOptions{})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Print the current thread's stack trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := mgr().GetStack(cmd.Context(), sessionFlag, debugger.StackOptions{})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the target process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mgr().ResumeSession(cmd.Context(), sessionFlag, debugger.ResumeOptions{})
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach",
	Short: "Detach and dispose a debug session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mgr().DetachSession(cmd.Context(), sessionFlag)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, stackCmd, resumeCmd, detachCmd} {
		addSessionFlag(c)
		rootCmd.AddCommand(c)
	}
}
