package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Open an interactive REPL against the current debug session",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, ok := mgr().GetSession("")
		if !ok {
			return fmt.Errorf("no current session; run 'xcdebugctl attach' first")
		}
		return runREPL(info.ID)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// runREPL drives a readline loop against one session, exercising
// run/break/rmbreak/stack/vars/state/resume/detach from a terminal the way
// a developer would while building out a backend, in lieu of a test suite
// that talks to a real simulator.
func runREPL(sessionID string) error {
	prompt := color.New(color.FgCyan, color.Bold).Sprint("(xcdebugctl) ")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := dispatchREPLLine(ctx, sessionID, line); quit {
			return nil
		}
	}
}

func dispatchREPLLine(ctx context.Context, sessionID, line string) (quit bool) {
	fields := strings.SplitN(line, " ", 2)
	cmd := fields[0]
	var rest string
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "run":
		err = replRunCommand(ctx, sessionID, rest)
	case "break":
		err = replAddBreakpoint(ctx, sessionID, rest)
	case "rmbreak":
		err = replRemoveBreakpoint(ctx, sessionID, rest)
	case "stack":
		err = replGetStack(ctx, sessionID)
	case "vars":
		err = replGetVariables(ctx, sessionID)
	case "state":
		err = replGetExecutionState(ctx, sessionID)
	case "resume", "continue":
		err = replResume(ctx, sessionID)
	case "detach":
		if derr := mgr().DetachSession(ctx, sessionID); derr != nil {
			color.Red("detach: %v", derr)
		} else {
			color.Green("detached")
		}
		return true
	default:
		color.Yellow("unknown command %q (run, break, rmbreak, stack, vars, state, resume, detach, quit)", cmd)
		return false
	}
	if err != nil {
		color.Red("%v", err)
	}
	return false
}

func replRunCommand(ctx context.Context, sessionID, command string) error {
	if command == "" {
		return fmt.Errorf("usage: run <debugger command>")
	}
	out, err := mgr().RunCommand(ctx, sessionID, command, debugger.RunCommandOptions{})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// replAddBreakpoint accepts "file:line[:condition]" or "func:Name".
func replAddBreakpoint(ctx context.Context, sessionID, arg string) error {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("usage: break <file>:<line>[:<condition>] | break func:<name>")
	}

	var spec debugger.BreakpointSpec
	var opts debugger.BreakpointOptions
	if parts[0] == "func" {
		spec = debugger.BreakpointSpec{Kind: debugger.BreakpointKindFunction, FunctionName: parts[1]}
	} else {
		line, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid line %q: %w", parts[1], err)
		}
		spec = debugger.BreakpointSpec{Kind: debugger.BreakpointKindFileLine, File: parts[0], Line: line}
		if len(parts) == 3 {
			opts.Condition = parts[2]
		}
	}

	info, err := mgr().AddBreakpoint(ctx, sessionID, spec, opts)
	if err != nil {
		return err
	}
	color.Green("breakpoint %d set", info.ID)
	return nil
}

func replRemoveBreakpoint(ctx context.Context, sessionID, arg string) error {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("usage: rmbreak <id>")
	}
	if err := mgr().RemoveBreakpoint(ctx, sessionID, id); err != nil {
		return err
	}
	color.Green("breakpoint %d removed", id)
	return nil
}

func replGetStack(ctx context.Context, sessionID string) error {
	out, err := mgr().GetStack(ctx, sessionID, debugger.StackOptions{})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func replGetVariables(ctx context.Context, sessionID string) error {
	out, err := mgr().GetVariables(ctx, sessionID, debugger.VariablesOptions{})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func replGetExecutionState(ctx context.Context, sessionID string) error {
	state, err := mgr().GetExecutionState(ctx, sessionID, debugger.ExecutionStateOptions{})
	if err != nil {
		return err
	}
	if state.Reason != "" {
		fmt.Printf("%s (%s)\n", state.Status, state.Reason)
	} else {
		fmt.Println(state.Status)
	}
	return nil
}

func replResume(ctx context.Context, sessionID string) error {
	if err := mgr().ResumeSession(ctx, sessionID, debugger.ResumeOptions{}); err != nil {
		return err
	}
	color.Green("resumed")
	return nil
}
