package debugger

import "context"

// Backend is the contract both the LLDB-CLI and DAP backends implement
// (spec.md §4.2). Every operation fails with a typed error kind from
// internal/debugger/errs; Dispose is idempotent.
type Backend interface {
	Attach(ctx context.Context, opts AttachOptions) error
	Detach(ctx context.Context) error
	RunCommand(ctx context.Context, command string, opts RunCommandOptions) (string, error)
	AddBreakpoint(ctx context.Context, spec BreakpointSpec, opts BreakpointOptions) (BreakpointInfo, error)
	RemoveBreakpoint(ctx context.Context, id int) error
	GetStack(ctx context.Context, opts StackOptions) (string, error)
	GetVariables(ctx context.Context, opts VariablesOptions) (string, error)
	GetExecutionState(ctx context.Context, opts ExecutionStateOptions) (ExecutionState, error)
	Resume(ctx context.Context, opts ResumeOptions) error
	Dispose() error
}

// BackendFactory constructs a fresh, unattached backend of a given kind.
// The manager calls this once per createSession; tests substitute a factory
// returning a fake backend.
type BackendFactory func(kind BackendKind) (Backend, error)
