// Package dapbackend implements debugger.Backend over the Debug Adapter
// Protocol via lldb-dap, per spec.md §4.4. Grounded on the teacher's
// internal/integration/debug.Session (event wiring, SetBreakpoints/
// Continue/StackTrace plumbing), generalized from "editor talks to
// delve/python/node" down to "session manager talks to lldb-dap for one
// pid on one simulator."
package dapbackend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
	"github.com/xcodebuildmcp/debugger/internal/debugger/cmdexec"
	"github.com/xcodebuildmcp/debugger/internal/debugger/config"
	"github.com/xcodebuildmcp/debugger/internal/debugger/dap"
	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
	"github.com/xcodebuildmcp/debugger/internal/debugger/queue"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

// Backend implements debugger.Backend by driving lldb-dap over the Debug
// Adapter Protocol.
type Backend struct {
	launcher Launcher
	log      *telemetry.Logger

	q *queue.Queue

	mu           sync.Mutex
	client       *dap.Client
	closer       interface{ Close() error }
	attached     bool
	disposed     bool
	capabilities dap.Capabilities

	// state tracker
	stateMu          sync.Mutex
	cachedState      debugger.ExecutionState
	lastStoppedTID   int
	hasStoppedTID    bool

	// breakpoint bookkeeping
	bpMu sync.Mutex
	bp   *breakpointState
}

// New constructs an unattached DAP backend using launcher to start lldb-dap.
func New(launcher Launcher, log *telemetry.Logger) *Backend {
	if log == nil {
		log = telemetry.Noop()
	}
	return &Backend{
		launcher: launcher,
		log:      log.WithComponent("debugger.dap"),
		q:        queue.New(),
		bp:       newBreakpointState(),
		cachedState: debugger.ExecutionState{Status: debugger.StatusUnknown},
	}
}

var _ debugger.Backend = (*Backend)(nil)

func (b *Backend) requestTimeout() time.Duration {
	return time.Duration(config.DAPRequestTimeoutMS()) * time.Millisecond
}

// Attach runs the initialize -> attach -> configurationDone sequence.
func (b *Backend) Attach(ctx context.Context, opts debugger.AttachOptions) error {
	stdin, stdout, closer, err := b.launcher.Launch(ctx)
	if err != nil {
		if cmdexec.IsNotFound(err) {
			return errs.NewAdapterMissingError()
		}
		return &errs.AttachError{Cause: err}
	}

	transport := dap.NewStdioTransport(stdin, stdout, closer)
	client := dap.NewClient(transport, b.log, config.DAPLogEvents())
	client.SetHandlers(dap.EventHandlers{
		OnStopped:    b.onStopped,
		OnContinued:  b.onContinued,
		OnExited:     b.onTerminal,
		OnTerminated: b.onTerminal,
	})

	b.mu.Lock()
	b.client = client
	b.closer = closer
	b.mu.Unlock()

	timeout := b.requestTimeout()

	initArgs := map[string]any{
		"linesStartAt1":        true,
		"columnsStartAt1":      true,
		"pathFormat":           "path",
		"supportsVariableType": true,
	}
	capBody, err := client.Send(ctx, "initialize", initArgs, timeout)
	if err != nil {
		_ = b.Dispose()
		return &errs.AttachError{Cause: err}
	}
	var caps dap.Capabilities
	_ = unmarshalInto(capBody, &caps)
	b.mu.Lock()
	b.capabilities = caps
	b.mu.Unlock()

	attachArgs := map[string]any{"pid": opts.PID, "waitFor": opts.WaitFor}
	if _, err := client.Send(ctx, "attach", attachArgs, timeout); err != nil {
		_ = b.Dispose()
		return &errs.AttachError{Cause: err}
	}

	if !explicitlyUnsupported(capBody) {
		if _, err := client.Send(ctx, "configurationDone", map[string]any{}, timeout); err != nil {
			_ = b.Dispose()
			return &errs.AttachError{Cause: err}
		}
	}

	b.mu.Lock()
	b.attached = true
	b.mu.Unlock()
	return nil
}

// explicitlyUnsupported checks the raw capabilities payload for a literal
// `"supportsConfigurationDoneRequest": false`, since Go's zero-value bool
// cannot distinguish "absent" from "false" once unmarshaled.
func explicitlyUnsupported(capBody []byte) bool {
	return strings.Contains(string(capBody), `"supportsConfigurationDoneRequest":false`) ||
		strings.Contains(string(capBody), `"supportsConfigurationDoneRequest": false`)
}

func (b *Backend) onStopped(body dap.StoppedEventBody) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.cachedState = debugger.ExecutionState{
		Status:      debugger.StatusStopped,
		Reason:      body.Reason,
		Description: body.Description,
		ThreadID:    body.ThreadID,
		HasThreadID: true,
	}
	b.lastStoppedTID = body.ThreadID
	b.hasStoppedTID = true
}

func (b *Backend) onContinued() {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.cachedState = debugger.ExecutionState{Status: debugger.StatusRunning}
	b.hasStoppedTID = false
}

func (b *Backend) onTerminal() {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.cachedState = debugger.ExecutionState{Status: debugger.StatusTerminated}
	b.hasStoppedTID = false
}

func (b *Backend) checkUsable() (*dap.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil, errs.ErrDisposed
	}
	if !b.attached {
		return nil, errs.ErrNotAttached
	}
	return b.client, nil
}

// Detach issues a best-effort disconnect without terminating the debuggee.
func (b *Backend) Detach(ctx context.Context) error {
	client, err := b.checkUsable()
	if err != nil {
		return err
	}
	_, _ = client.Send(ctx, "disconnect", map[string]any{"terminateDebuggee": false}, b.requestTimeout())
	return nil
}

// RunCommand evaluates command in the adapter's REPL context.
func (b *Backend) RunCommand(ctx context.Context, command string, opts debugger.RunCommandOptions) (string, error) {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return "", err
	}

	timeout := b.requestTimeout()
	if opts.TimeoutMS > 0 {
		timeout = time.Duration(opts.TimeoutMS) * time.Millisecond
	}

	body, err := client.Send(ctx, "evaluate", map[string]any{
		"expression": command,
		"context":    "repl",
	}, timeout)
	if err != nil {
		if isReplUnsupported(err) {
			return "", &errs.NotSupportedError{
				Operation: "runCommand",
				Guidance:  "this adapter does not support REPL evaluation; switch to XCODEBUILDMCP_DEBUGGER_BACKEND=lldb-cli",
			}
		}
		return "", err
	}
	var evalBody dap.EvaluateResponseBody
	_ = unmarshalInto(body, &evalBody)
	if evalBody.Output != "" {
		return evalBody.Output + evalBody.Result, nil
	}
	return evalBody.Result, nil
}

var replUnsupportedPattern = regexp.MustCompile(`(?i)unsupported|not supported|no repl`)

func isReplUnsupported(err error) bool { return replUnsupportedPattern.MatchString(err.Error()) }

// resolveThread implements the thread-selection rule shared by getStack and
// getVariables: explicit index wins, else the last-stopped thread if still
// present, else the first thread.
func (b *Backend) resolveThread(ctx context.Context, client *dap.Client, timeout time.Duration, threadIndex int, hasThreadIndex bool) (int, []dap.Thread, error) {
	body, err := client.Send(ctx, "threads", map[string]any{}, timeout)
	if err != nil {
		return 0, nil, err
	}
	var tb dap.ThreadsResponseBody
	_ = unmarshalInto(body, &tb)
	if len(tb.Threads) == 0 {
		return 0, tb.Threads, &errs.ProtocolError{Detail: "no threads reported"}
	}

	if hasThreadIndex {
		if threadIndex < 0 || threadIndex >= len(tb.Threads) {
			return 0, tb.Threads, errs.ErrNotFound
		}
		return tb.Threads[threadIndex].ID, tb.Threads, nil
	}

	b.stateMu.Lock()
	lastID, hasLast := b.lastStoppedTID, b.hasStoppedTID
	b.stateMu.Unlock()
	if hasLast {
		for _, t := range tb.Threads {
			if t.ID == lastID {
				return lastID, tb.Threads, nil
			}
		}
	}
	return tb.Threads[0].ID, tb.Threads, nil
}

// GetStack fetches and formats the stack trace for the resolved thread.
func (b *Backend) GetStack(ctx context.Context, opts debugger.StackOptions) (string, error) {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return "", err
	}
	timeout := b.requestTimeout()

	threadID, threads, err := b.resolveThread(ctx, client, timeout, opts.ThreadIndex, opts.HasThreadIndex)
	if err != nil {
		return "", err
	}

	args := map[string]any{"threadId": threadID, "startFrame": 0}
	if opts.HasMaxFrames {
		args["levels"] = opts.MaxFrames
	}
	body, err := client.Send(ctx, "stackTrace", args, timeout)
	if err != nil {
		if isProcessRunning(err) {
			return "", &errs.ProcessRunningError{}
		}
		return "", err
	}
	var st dap.StackTraceResponseBody
	_ = unmarshalInto(body, &st)

	threadName := ""
	for _, t := range threads {
		if t.ID == threadID {
			threadName = t.Name
		}
	}

	var sb strings.Builder
	if threadName != "" {
		fmt.Fprintf(&sb, "Thread %d (%s)\n", threadID, threadName)
	} else {
		fmt.Fprintf(&sb, "Thread %d\n", threadID)
	}
	for i, f := range st.StackFrames {
		fmt.Fprintf(&sb, "frame #%d: %s at %s:%d\n", i, f.Name, f.Source.Path, f.Line)
	}
	return sb.String(), nil
}

// GetVariables resolves the thread and frame, then renders each scope's
// variables.
func (b *Backend) GetVariables(ctx context.Context, opts debugger.VariablesOptions) (string, error) {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return "", err
	}
	timeout := b.requestTimeout()

	threadID, _, err := b.resolveThread(ctx, client, timeout, 0, false)
	if err != nil {
		return "", err
	}

	frameIndex := 0
	if opts.HasFrameIndex {
		frameIndex = opts.FrameIndex
	}

	body, err := client.Send(ctx, "stackTrace", map[string]any{
		"threadId":   threadID,
		"startFrame": 0,
		"levels":     frameIndex + 1,
	}, timeout)
	if err != nil {
		if isProcessRunning(err) {
			return "", &errs.ProcessRunningError{}
		}
		return "", err
	}
	var st dap.StackTraceResponseBody
	_ = unmarshalInto(body, &st)
	if frameIndex < 0 || frameIndex >= len(st.StackFrames) {
		return "", errs.ErrNotFound
	}
	frameID := st.StackFrames[frameIndex].ID

	scopesBody, err := client.Send(ctx, "scopes", map[string]any{"frameId": frameID}, timeout)
	if err != nil {
		return "", err
	}
	var scopes dap.ScopesResponseBody
	_ = unmarshalInto(scopesBody, &scopes)
	if len(scopes.Scopes) == 0 {
		return "(no variables)", nil
	}

	var sb strings.Builder
	any := false
	for _, scope := range scopes.Scopes {
		if scope.VariablesReference == 0 {
			continue
		}
		varsBody, err := client.Send(ctx, "variables", map[string]any{"variablesReference": scope.VariablesReference}, timeout)
		if err != nil {
			continue
		}
		var vb dap.VariablesResponseBody
		_ = unmarshalInto(varsBody, &vb)
		for _, v := range vb.Variables {
			any = true
			if v.Type != "" {
				fmt.Fprintf(&sb, "%s (%s) = %s\n", v.Name, v.Type, v.Value)
			} else {
				fmt.Fprintf(&sb, "%s = %s\n", v.Name, v.Value)
			}
		}
	}
	if !any {
		return "(no variables)", nil
	}
	return sb.String(), nil
}

var processRunningPattern = regexp.MustCompile(`(?i)running|not stopped`)

func isProcessRunning(err error) bool { return processRunningPattern.MatchString(err.Error()) }

// GetExecutionState returns the cached status if known, else probes.
func (b *Backend) GetExecutionState(ctx context.Context, opts debugger.ExecutionStateOptions) (debugger.ExecutionState, error) {
	b.stateMu.Lock()
	cached := b.cachedState
	b.stateMu.Unlock()
	if cached.Status != debugger.StatusUnknown {
		return cached, nil
	}

	release, err := b.q.Acquire(ctx)
	if err != nil {
		return debugger.ExecutionState{}, err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return debugger.ExecutionState{}, err
	}
	timeout := b.requestTimeout()
	if opts.TimeoutMS > 0 {
		timeout = time.Duration(opts.TimeoutMS) * time.Millisecond
	}

	body, err := client.Send(ctx, "threads", map[string]any{}, timeout)
	if err != nil {
		return debugger.ExecutionState{Status: debugger.StatusUnknown, Description: err.Error()}, nil
	}
	var tb dap.ThreadsResponseBody
	_ = unmarshalInto(body, &tb)
	if len(tb.Threads) == 0 {
		return debugger.ExecutionState{Status: debugger.StatusUnknown}, nil
	}

	_, err = client.Send(ctx, "stackTrace", map[string]any{
		"threadId": tb.Threads[0].ID, "startFrame": 0, "levels": 1,
	}, timeout)
	switch {
	case err == nil:
		return debugger.ExecutionState{Status: debugger.StatusStopped, ThreadID: tb.Threads[0].ID, HasThreadID: true}, nil
	case isProcessRunning(err):
		return debugger.ExecutionState{Status: debugger.StatusRunning}, nil
	default:
		return debugger.ExecutionState{Status: debugger.StatusUnknown, Description: err.Error()}, nil
	}
}

// Resume sends "continue" and optimistically sets status to running.
func (b *Backend) Resume(ctx context.Context, opts debugger.ResumeOptions) error {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return err
	}
	args := map[string]any{}
	if opts.HasThreadID {
		args["threadId"] = opts.ThreadID
	}
	if _, err := client.Send(ctx, "continue", args, b.requestTimeout()); err != nil {
		return err
	}
	b.onContinued()
	return nil
}

// Dispose closes the transport. Idempotent.
func (b *Backend) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}
