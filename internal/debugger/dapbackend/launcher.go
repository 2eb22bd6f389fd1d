package dapbackend

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/xcodebuildmcp/debugger/internal/debugger/cmdexec"
)

// Launcher starts the lldb-dap adapter process and exposes its stdio,
// separate from procio.Spawner since DAP needs independent stdin/stdout
// pipes (unlike the CLI backend, it must not merge stderr into the framed
// JSON stream).
type Launcher interface {
	Launch(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, closer io.Closer, err error)
}

// ProcessLauncher resolves lldb-dap via `xcrun --find lldb-dap` and spawns
// it with piped stdin/stdout; stderr is forwarded to the host process's
// stderr for diagnostics.
type ProcessLauncher struct {
	Exec cmdexec.Executor
}

// Launch implements Launcher.
func (l ProcessLauncher) Launch(ctx context.Context) (io.WriteCloser, io.ReadCloser, io.Closer, error) {
	exec := l.Exec
	if exec == nil {
		exec = cmdexec.OSExecutor{}
	}
	path, err := cmdexec.FindLLDBDAP(ctx, exec)
	if err != nil {
		return nil, nil, nil, err
	}

	cmd := osExecCommand(ctx, path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lldb-dap stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lldb-dap stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("start lldb-dap: %w", err)
	}

	return stdin, stdout, processCloser{cmd}, nil
}

type processCloser struct{ cmd *exec.Cmd }

func (c processCloser) Close() error {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}

func osExecCommand(ctx context.Context, path string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, path, args...)
}
