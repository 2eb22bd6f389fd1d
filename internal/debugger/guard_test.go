package debugger

import (
	"context"
	"testing"
)

func newGuardTestManager(t *testing.T, status ExecutionStatus, simulatorID string) *Manager {
	t.Helper()
	fb := &fakeBackend{state: ExecutionState{Status: status, Reason: "breakpoint 1"}}
	m := newTestManager(func(kind BackendKind) (Backend, error) { return fb, nil })
	if _, err := m.CreateSession(context.Background(), CreateSessionOptions{SimulatorID: simulatorID, PID: 99}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return m
}

// TestGuardBlocksWhenStoppedInErrorMode exercises spec.md §8's scenario 6:
// the guard blocks a UI-automation tool call while the debugger is stopped.
func TestGuardBlocksWhenStoppedInErrorMode(t *testing.T) {
	m := newGuardTestManager(t, StatusStopped, "sim-1")
	verdict, err := Guard(context.Background(), m, "sim-1", "tap", GuardModeError, true, nil)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if !verdict.Applies || !verdict.Blocked {
		t.Fatalf("verdict = %+v, want applies+blocked", verdict)
	}
	if verdict.Detail == "" {
		t.Error("expected a non-empty detail block")
	}
}

func TestGuardWarnsWithoutBlockingInWarnMode(t *testing.T) {
	m := newGuardTestManager(t, StatusStopped, "sim-1")
	verdict, err := Guard(context.Background(), m, "sim-1", "tap", GuardModeWarn, true, nil)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if !verdict.Applies || verdict.Blocked {
		t.Fatalf("verdict = %+v, want applies=true blocked=false", verdict)
	}
}

func TestGuardDoesNotApplyWhenRunning(t *testing.T) {
	m := newGuardTestManager(t, StatusRunning, "sim-1")
	verdict, err := Guard(context.Background(), m, "sim-1", "tap", GuardModeError, true, nil)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if verdict.Applies {
		t.Fatalf("verdict = %+v, want applies=false while running", verdict)
	}
}

func TestGuardOffModeNeverApplies(t *testing.T) {
	m := newGuardTestManager(t, StatusStopped, "sim-1")
	verdict, err := Guard(context.Background(), m, "sim-1", "tap", GuardModeOff, true, nil)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if verdict.Applies {
		t.Fatal("expected GuardModeOff to never apply")
	}
}

func TestGuardDoesNotApplyWithoutASessionForTheSimulator(t *testing.T) {
	m := newGuardTestManager(t, StatusStopped, "sim-1")
	verdict, err := Guard(context.Background(), m, "sim-other", "tap", GuardModeError, true, nil)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if verdict.Applies {
		t.Fatal("expected no verdict for a simulator with no debug session")
	}
}
