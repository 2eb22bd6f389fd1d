package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
	"github.com/xcodebuildmcp/debugger/internal/debugger/procio"
	"github.com/xcodebuildmcp/debugger/internal/debugger/queue"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

const (
	defaultStartupTimeout = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Backend implements debugger.Backend by driving an interactive lldb
// process through prompt+sentinel framing. Grounded on the teacher's
// internal/integration/process.Process for child lifecycle, generalized
// with a pty-merged stdout/stderr scan loop per spec §4.3.
type Backend struct {
	spawner procio.Spawner
	log     *telemetry.Logger

	q *queue.Queue

	mu     sync.Mutex
	proc   *procio.Process
	buf    strings.Builder
	notify chan struct{}
	ready  bool

	disposed bool
}

// New constructs an unattached CLI backend using spawner to start lldb.
func New(spawner procio.Spawner, log *telemetry.Logger) *Backend {
	if log == nil {
		log = telemetry.Noop()
	}
	return &Backend{
		spawner: spawner,
		log:     log.WithComponent("debugger.cli"),
		q:       queue.New(),
		notify:  make(chan struct{}),
	}
}

var _ debugger.Backend = (*Backend)(nil)

// Attach spawns lldb, configures its prompt, then issues `process attach`.
func (b *Backend) Attach(ctx context.Context, opts debugger.AttachOptions) error {
	proc, err := b.spawner.Spawn(ctx, "lldb", []string{
		"--no-lldbinit",
		"-o", fmt.Sprintf("settings set prompt %s", Prompt),
	})
	if err != nil {
		return &errs.AttachError{Cause: err}
	}

	b.mu.Lock()
	b.proc = proc
	b.mu.Unlock()
	go b.pump(proc)

	if _, err := b.primeReadiness(ctx); err != nil {
		_ = b.Dispose()
		return &errs.AttachError{Cause: err}
	}

	attachCmd := fmt.Sprintf("process attach --pid %d", opts.PID)
	if opts.WaitFor {
		attachCmd += " --waitfor"
	}
	out, err := b.runLocked(ctx, attachCmd, defaultCommandTimeout)
	if err != nil {
		_ = b.Dispose()
		return &errs.AttachError{Cause: err}
	}
	if containsErrorMarker(out) {
		_ = b.Dispose()
		return &errs.AttachError{Cause: fmt.Errorf("%s", out)}
	}

	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	return nil
}

// primeReadiness writes a single sentinel-print and waits for it, per
// spec §4.3's readiness step (bounded by the startup timeout).
func (b *Backend) primeReadiness(ctx context.Context) (string, error) {
	b.mu.Lock()
	proc := b.proc
	b.mu.Unlock()
	if _, err := fmt.Fprintf(proc.Stdin, "%s\n", scriptPrintCommand()); err != nil {
		return "", err
	}
	return b.waitForSentinel(ctx, defaultStartupTimeout, "startup")
}

// RunCommand implements the central algorithm of spec §4.3.
func (b *Backend) RunCommand(ctx context.Context, command string, opts debugger.RunCommandOptions) (string, error) {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := b.checkUsable(); err != nil {
		return "", err
	}

	timeout := defaultCommandTimeout
	if opts.TimeoutMS > 0 {
		timeout = time.Duration(opts.TimeoutMS) * time.Millisecond
	}
	return b.runLocked(ctx, command, timeout)
}

// runLocked does not take the queue ticket: RunCommand calls it while holding
// the ticket, and Attach calls it before the backend is marked ready (so
// every other operation still fails checkUsable). It writes the command and
// the sentinel-print line, then waits for the sentinel.
func (b *Backend) runLocked(ctx context.Context, command string, timeout time.Duration) (string, error) {
	b.mu.Lock()
	proc := b.proc
	b.mu.Unlock()
	if proc == nil {
		return "", errs.ErrNotAttached
	}

	if _, err := fmt.Fprintf(proc.Stdin, "%s\n%s\n", command, scriptPrintCommand()); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}
	return b.waitForSentinel(ctx, timeout, command)
}

// waitForSentinel blocks until the scanner finds a sentinel in the buffer,
// the process exits, the context is cancelled, or timeout elapses.
func (b *Backend) waitForSentinel(ctx context.Context, timeout time.Duration, op string) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		b.mu.Lock()
		content := b.buf.String()
		if idx, ok := findSentinel(content); ok {
			raw, remainder := splitOutput(content, idx)
			b.buf.Reset()
			b.buf.WriteString(remainder)
			b.mu.Unlock()
			return raw, nil
		}
		proc := b.proc
		ch := b.notify
		b.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", &errs.TimeoutError{Operation: op, Budget: timeout}
		}

		select {
		case <-ch:
			continue
		case <-proc.Done():
			b.mu.Lock()
			content = b.buf.String()
			if idx, ok := findSentinel(content); ok {
				raw, remainder := splitOutput(content, idx)
				b.buf.Reset()
				b.buf.WriteString(remainder)
				b.mu.Unlock()
				return raw, nil
			}
			b.mu.Unlock()
			return "", fmt.Errorf("lldb exited: %s", proc.ExitDetail())
		case <-time.After(remaining):
			return "", &errs.TimeoutError{Operation: op, Budget: timeout}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// pump reads the merged stdout/stderr stream into the shared buffer and
// wakes any waiter after each chunk.
func (b *Backend) pump(proc *procio.Process) {
	buf := make([]byte, 4096)
	for {
		n, err := proc.Output.Read(buf)
		if n > 0 {
			b.mu.Lock()
			b.buf.Write(buf[:n])
			old := b.notify
			b.notify = make(chan struct{})
			b.mu.Unlock()
			close(old)
		}
		if err != nil {
			return
		}
	}
}

func (b *Backend) checkUsable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return errs.ErrDisposed
	}
	if !b.ready {
		return errs.ErrNotAttached
	}
	return nil
}

// Detach issues `process detach` best-effort; callers must still Dispose.
func (b *Backend) Detach(ctx context.Context) error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	_, err := b.RunCommand(ctx, "process detach", debugger.RunCommandOptions{})
	return err
}

// AddBreakpoint implements spec §4.3's breakpoint-set algorithm.
func (b *Backend) AddBreakpoint(ctx context.Context, spec debugger.BreakpointSpec, opts debugger.BreakpointOptions) (debugger.BreakpointInfo, error) {
	var cmd string
	switch spec.Kind {
	case debugger.BreakpointKindFileLine:
		cmd = fmt.Sprintf(`breakpoint set --file %q --line %d`, spec.File, spec.Line)
	case debugger.BreakpointKindFunction:
		cmd = fmt.Sprintf(`breakpoint set --name %q`, spec.FunctionName)
	default:
		return debugger.BreakpointInfo{}, &errs.ProtocolError{Detail: "unknown breakpoint kind"}
	}

	out, err := b.RunCommand(ctx, cmd, debugger.RunCommandOptions{})
	if err != nil {
		return debugger.BreakpointInfo{}, err
	}
	id, ok := parseBreakpointID(out)
	if !ok {
		return debugger.BreakpointInfo{}, &errs.ProtocolError{Detail: "missing breakpoint id in output: " + out}
	}

	if opts.Condition != "" {
		modCmd := fmt.Sprintf(`breakpoint modify -c "%s" %d`, escapeCondition(opts.Condition), id)
		if _, err := b.RunCommand(ctx, modCmd, debugger.RunCommandOptions{}); err != nil {
			return debugger.BreakpointInfo{}, err
		}
	}

	spec.Condition = opts.Condition
	return debugger.BreakpointInfo{ID: id, Spec: spec, RawOutput: out}, nil
}

var conditionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeCondition(cond string) string { return conditionEscaper.Replace(cond) }

// RemoveBreakpoint issues `breakpoint delete <id>`.
func (b *Backend) RemoveBreakpoint(ctx context.Context, id int) error {
	_, err := b.RunCommand(ctx, fmt.Sprintf("breakpoint delete %d", id), debugger.RunCommandOptions{})
	return err
}

// GetStack issues `thread backtrace` with the optional frame/thread qualifiers.
func (b *Backend) GetStack(ctx context.Context, opts debugger.StackOptions) (string, error) {
	cmd := "thread backtrace"
	if opts.HasMaxFrames {
		cmd += fmt.Sprintf(" -c %d", opts.MaxFrames)
	}
	if opts.HasThreadIndex {
		cmd += fmt.Sprintf(" %d", opts.ThreadIndex)
	}
	return b.RunCommand(ctx, cmd, debugger.RunCommandOptions{})
}

// GetVariables optionally selects a frame, then requests `frame variable`.
func (b *Backend) GetVariables(ctx context.Context, opts debugger.VariablesOptions) (string, error) {
	if opts.HasFrameIndex {
		if _, err := b.RunCommand(ctx, fmt.Sprintf("frame select %d", opts.FrameIndex), debugger.RunCommandOptions{}); err != nil {
			return "", err
		}
	}
	return b.RunCommand(ctx, "frame variable", debugger.RunCommandOptions{})
}

var (
	terminatedPattern = regexp.MustCompile(`(?i)no process|exited|terminated`)
	stoppedPattern    = regexp.MustCompile(`(?i)\bstopped\b`)
	runningPattern    = regexp.MustCompile(`(?i)\brunning\b`)
	errorPatternState = regexp.MustCompile(`(?i)error:`)
	stopReasonPattern = regexp.MustCompile(`(?i)stop reason\s*=\s*(.+)`)
)

// GetExecutionState queries `process status` and classifies it per spec §4.3.
func (b *Backend) GetExecutionState(ctx context.Context, opts debugger.ExecutionStateOptions) (debugger.ExecutionState, error) {
	timeoutOpts := debugger.RunCommandOptions{TimeoutMS: opts.TimeoutMS}
	out, err := b.RunCommand(ctx, "process status", timeoutOpts)
	if err != nil {
		return debugger.ExecutionState{}, err
	}

	switch {
	case terminatedPattern.MatchString(out):
		return debugger.ExecutionState{Status: debugger.StatusTerminated, Description: out}, nil
	case stoppedPattern.MatchString(out):
		state := debugger.ExecutionState{Status: debugger.StatusStopped, Description: out}
		if m := stopReasonPattern.FindStringSubmatch(out); m != nil {
			state.Reason = strings.TrimSpace(m[1])
		}
		return state, nil
	case runningPattern.MatchString(out):
		return debugger.ExecutionState{Status: debugger.StatusRunning, Description: out}, nil
	case errorPatternState.MatchString(out):
		return debugger.ExecutionState{Status: debugger.StatusUnknown, Description: out}, nil
	default:
		return debugger.ExecutionState{Status: debugger.StatusUnknown, Description: out}, nil
	}
}

// Resume writes `process continue` without waiting for the sentinel, since
// the debugger will not print a new prompt until the next stop.
func (b *Backend) Resume(ctx context.Context, _ debugger.ResumeOptions) error {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := b.checkUsable(); err != nil {
		return err
	}

	b.mu.Lock()
	proc := b.proc
	b.mu.Unlock()
	_, err = fmt.Fprintf(proc.Stdin, "process continue\n")
	return err
}

// Dispose terminates the child process and marks the backend unusable.
// Idempotent.
func (b *Backend) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	proc := b.proc
	b.mu.Unlock()

	if proc == nil {
		return nil
	}
	if proc.IsRunning() {
		_ = proc.Kill()
	}
	return proc.Close()
}
