package debugger

import (
	"context"
	"fmt"
	"strings"

	dconfig "github.com/xcodebuildmcp/debugger/internal/debugger/config"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

// GuardMode re-exports config.GuardMode so callers of this package do not
// need a second import for the same concept.
type GuardMode = dconfig.GuardMode

const (
	GuardModeError = dconfig.GuardModeError
	GuardModeWarn  = dconfig.GuardModeWarn
	GuardModeOff   = dconfig.GuardModeOff
)

// GuardVerdict is the result of evaluating the UI-automation guard.
// Blocked is true only in GuardModeError with status=stopped; Detail is the
// deterministic block produced for both warn and error modes.
type GuardVerdict struct {
	Applies bool
	Blocked bool
	Title   string
	Detail  string
}

// Guard implements spec.md §4.7's procedure. toolName identifies the
// caller for the details block; mode, when hasMode is false, resolves from
// the XCODEBUILDMCP_UI_DEBUGGER_GUARD_MODE env var.
func Guard(ctx context.Context, mgr *Manager, simulatorID, toolName string, mode GuardMode, hasMode bool, log *telemetry.Logger) (GuardVerdict, error) {
	if log == nil {
		log = telemetry.Noop()
	}
	log = log.WithComponent("debugger.guard")

	resolved := dconfig.ResolveGuardMode(mode, hasMode)
	if resolved == GuardModeOff {
		return GuardVerdict{}, nil
	}

	info, ok := mgr.FindSessionForSimulator(simulatorID)
	if !ok {
		return GuardVerdict{}, nil
	}

	state, err := mgr.GetExecutionState(ctx, info.ID, ExecutionStateOptions{})
	if err != nil {
		log.Debug("guard: getExecutionState failed for session %s: %v", info.ID, err)
		return GuardVerdict{}, nil
	}

	if state.Status != StatusStopped {
		return GuardVerdict{}, nil
	}

	detail := buildDetailBlock(toolName, simulatorID, info, state)

	if resolved == GuardModeWarn {
		return GuardVerdict{Applies: true, Blocked: false, Title: "UI automation warning: app is paused in debugger", Detail: detail}, nil
	}
	return GuardVerdict{
		Applies: true,
		Blocked: true,
		Title:   "UI automation blocked: app is paused in debugger",
		Detail:  detail,
	}, nil
}

func buildDetailBlock(toolName, simulatorID string, info SessionInfo, state ExecutionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tool=%s\n", toolName)
	fmt.Fprintf(&b, "simulatorId=%s\n", simulatorID)
	fmt.Fprintf(&b, "debugSessionId=%s\n", info.ID)
	fmt.Fprintf(&b, "backend=%s\n", info.Backend)
	fmt.Fprintf(&b, "pid=%d\n", info.PID)
	if state.Reason != "" {
		fmt.Fprintf(&b, "state=%s (%s)\n", state.Status, state.Reason)
	} else {
		fmt.Fprintf(&b, "state=%s\n", state.Status)
	}
	if state.Description != "" {
		fmt.Fprintf(&b, "stateDetails=%s\n", state.Description)
	}
	b.WriteString("resume or detach the debug session to continue UI automation\n")
	return b.String()
}
