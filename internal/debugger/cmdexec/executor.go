// Package cmdexec provides the one-shot command executor abstraction used
// for adapter discovery (xcrun --find lldb-dap) and binary version checks,
// kept separate from procio.Spawner since these calls run to completion and
// return a status/stdout/stderr triple rather than a long-lived child.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Result is the outcome of a one-shot command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs a command to completion. Grounded on the teacher's
// adapters.FindExecutable (exec.LookPath) and
// sidkshatriya-dontbug's getPathAndVersionLineOrFatal (run + parse
// --version), generalized into an injectable collaborator so backend
// selection and adapter discovery are testable without touching the host.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// OSExecutor runs commands via os/exec against the real host.
type OSExecutor struct{}

// Run executes name with args and captures stdout/stderr.
func (OSExecutor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	} else if runErr != nil {
		code = -1
	}
	return Result{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// FindLLDBDAP resolves the lldb-dap adapter path via `xcrun --find lldb-dap`.
// A non-zero exit or empty stdout yields a NotFoundError, which the DAP
// backend's Attach (internal/debugger/dapbackend) turns into an
// AdapterMissingError.
func FindLLDBDAP(ctx context.Context, exec Executor) (string, error) {
	res, err := exec.Run(ctx, "xcrun", "--find", "lldb-dap")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errNotFound(res.Stderr)
	}
	path := strings.TrimSpace(res.Stdout)
	if path == "" {
		return "", errNotFound("xcrun --find lldb-dap produced no output")
	}
	return path, nil
}

// NotFoundError distinguishes "lldb-dap could not be located" from other
// launch failures (pipe setup, process start), so callers can tell adapter
// absence apart from a merely-failed-to-start adapter.
type NotFoundError struct{ detail string }

func (e *NotFoundError) Error() string { return "lldb-dap lookup failed: " + e.detail }

func errNotFound(detail string) error { return &NotFoundError{detail: detail} }

// IsNotFound reports whether err (or anything it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// MinimumConstraint is the lowest lldb/lldb-dap version this module has been
// validated against. CheckVersion is best-effort: if the version string
// cannot be parsed, it is not treated as a hard failure (LLDB's --version
// output format varies across Xcode releases), only logged by the caller.
var MinimumConstraint = mustConstraint(">= 1400.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseVersion extracts the first semver-shaped token from LLDB/lldb-dap
// --version output (e.g. "lldb-1500.0.43 (...)" yields 1500.0.43), grounded
// on dontbug's version-constraint checks via Masterminds/semver. A token
// with more than three numeric components, such as "1500.0.43.2", is not
// semver-shaped and is skipped.
func ParseVersion(versionOutput string) (*semver.Version, bool) {
	for _, field := range strings.FieldsFunc(versionOutput, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '('
	}) {
		if v, err := semver.NewVersion(field); err == nil {
			return v, true
		}
	}
	return nil, false
}

// CheckVersion reports whether versionOutput satisfies MinimumConstraint.
// It returns (true, true) when the version parses and satisfies the
// constraint, (false, true) when it parses but fails, and (false, false)
// when the version could not be parsed at all.
func CheckVersion(versionOutput string) (satisfies bool, parsed bool) {
	v, ok := ParseVersion(versionOutput)
	if !ok {
		return false, false
	}
	return MinimumConstraint.Check(v), true
}
