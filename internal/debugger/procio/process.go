// Package procio provides the injectable interactive-process abstraction:
// spawn a child with piped (or pty-merged) stdio, write bytes to it, and
// observe its exit. Adapted from the teacher's
// internal/integration/process.Process (exec.Cmd wrapping, atomic state,
// a single wait goroutine closing a done channel) generalized so the LLDB
// CLI backend can merge stdout+stderr into one parse buffer via a pty,
// as spec.md §4.3 requires ("stdout and stderr are merged into a single
// parse buffer"), using github.com/creack/pty rather than two separate
// os/exec pipes.
package procio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// State mirrors the teacher's process.State lifecycle enum.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateExited
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Sentinel errors, following the teacher's process package convention.
var (
	ErrProcessNotStarted     = errors.New("procio: process not started")
	ErrProcessAlreadyStarted = errors.New("procio: process already started")
)

// Process is a managed child process with merged stdout/stderr reachable
// through a single io.Reader, suitable for the CLI backend's sentinel
// scanner.
type Process struct {
	Name string
	Cmd  *exec.Cmd

	// Stdin writes to the child's input. Set by Spawn.
	Stdin io.Writer
	// Output is the merged stdout+stderr stream. Set by Spawn.
	Output io.Reader

	ptyFile io.Closer

	Started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32
	exitErr  error
	mu       sync.RWMutex
	waitOnce sync.Once
}

// Spawner is the injectable collaborator used by backends to start a child
// process; real usage passes PTYSpawner, tests substitute a fake.
type Spawner interface {
	Spawn(ctx context.Context, name string, args []string) (*Process, error)
}

// PTYSpawner spawns processes with merged stdio via a pseudo-terminal.
type PTYSpawner struct{}

// Spawn starts name with args under a pty and begins exit tracking.
func (PTYSpawner) Spawn(ctx context.Context, name string, args []string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	p := &Process{Name: name, Cmd: cmd, done: make(chan struct{})}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)

	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	p.ptyFile = f
	p.Stdin = f
	p.Output = f
	p.Started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.waitLoop()
	return p, nil
}

func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := StateExited
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// State returns the current lifecycle state.
func (p *Process) State() State { return State(p.state.Load()) }

// ExitCode returns the process exit code, or -1 if it has not exited.
func (p *Process) ExitCode() int { return int(p.exitCode.Load()) }

// ExitError returns the error from Wait(), if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// IsRunning reports whether the process is currently running.
func (p *Process) IsRunning() bool { return p.State() == StateRunning }

// PID returns the child's process id, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	if !p.IsRunning() {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Kill()
}

// Close releases the pty file descriptor. It does not kill the process.
func (p *Process) Close() error {
	if p.ptyFile != nil {
		return p.ptyFile.Close()
	}
	return nil
}

// ExitDetail renders a human-readable description of why the process exited,
// used to build the exit-detail error surfaced to pending commands.
func (p *Process) ExitDetail() string {
	if err := p.ExitError(); err != nil {
		return fmt.Sprintf("exit code %d: %v", p.ExitCode(), err)
	}
	return fmt.Sprintf("exit code %d", p.ExitCode())
}
