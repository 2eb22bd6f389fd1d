package cli

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
	"github.com/xcodebuildmcp/debugger/internal/debugger/procio"
)

// scriptedProcess is a fake procio.Process stand-in driven by a script
// mapping a written line to the bytes it should emit in response, in the
// teacher's hand-rolled-fake style (no mocking library).
type scriptedProcess struct {
	mu      sync.Mutex
	written []string
	script  map[string]string

	outR *io.PipeReader
	outW *io.PipeWriter
}

func newScriptedProcess(script map[string]string) *scriptedProcess {
	r, w := io.Pipe()
	return &scriptedProcess{script: script, outR: r, outW: w}
}

func (p *scriptedProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	line := strings.TrimRight(string(b), "\n")
	p.written = append(p.written, line)
	resp, ok := p.script[line]
	p.mu.Unlock()
	if ok {
		go func() { _, _ = p.outW.Write([]byte(resp)) }()
	}
	return len(b), nil
}

type scriptedSpawner struct {
	proc *scriptedProcess
}

func (s scriptedSpawner) Spawn(ctx context.Context, name string, args []string) (*procio.Process, error) {
	return nil, nil // unused: tests construct Backend.proc directly via newBackendForTest
}

// newBackendForTest builds a Backend wired directly to a scriptedProcess,
// bypassing Spawn/exec.Cmd plumbing (procio.Process fields are exported
// specifically so tests can do this).
func newBackendForTest(sp *scriptedProcess) *Backend {
	b := New(scriptedSpawner{}, nil)
	proc := &procio.Process{Stdin: sp, Output: sp.outR}
	b.mu.Lock()
	b.proc = proc
	b.mu.Unlock()
	go b.pump(proc)
	return b
}

func TestCLIBackendAttachAndBacktrace(t *testing.T) {
	script := map[string]string{
		scriptPrintCommand(): Sentinel + "\n" + Prompt,
		"process attach --pid 4321\n" + scriptPrintCommand(): "Process 4321 attached\n" + Sentinel + "\n" + Prompt,
		"thread backtrace\n" + scriptPrintCommand():          "frame #0: main at a.c:10\nframe #1: start\n" + Sentinel + "\n" + Prompt,
	}
	sp := newScriptedProcess(script)
	b := newBackendForTest(sp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := b.primeReadiness(ctx); err != nil {
		t.Fatalf("primeReadiness: %v", err)
	}
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()

	out, err := b.RunCommand(ctx, "process attach --pid 4321", debugger.RunCommandOptions{})
	if err != nil {
		t.Fatalf("attach command: %v", err)
	}
	if containsErrorMarker(out) {
		t.Fatalf("unexpected error marker in attach output: %q", out)
	}

	stack, err := b.GetStack(ctx, debugger.StackOptions{})
	if err != nil {
		t.Fatalf("GetStack: %v", err)
	}
	if !strings.Contains(stack, "frame #0") {
		t.Errorf("stack missing frame #0: %q", stack)
	}
	if strings.Contains(stack, Prompt) || strings.Contains(stack, Sentinel) {
		t.Errorf("stack leaked prompt/sentinel: %q", stack)
	}
}

func TestCLIBackendBreakpointWithCondition(t *testing.T) {
	script := map[string]string{
		scriptPrintCommand(): Sentinel + "\n" + Prompt,
		`breakpoint set --file "/a.c" --line 10` + "\n" + scriptPrintCommand(): "Breakpoint 1: where = ...\n" + Sentinel + "\n" + Prompt,
		`breakpoint modify -c "x > 0" 1` + "\n" + scriptPrintCommand():          "\n" + Sentinel + "\n" + Prompt,
	}
	sp := newScriptedProcess(script)
	b := newBackendForTest(sp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := b.primeReadiness(ctx); err != nil {
		t.Fatalf("primeReadiness: %v", err)
	}
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()

	info, err := b.AddBreakpoint(ctx, debugger.BreakpointSpec{
		Kind: debugger.BreakpointKindFileLine,
		File: "/a.c",
		Line: 10,
	}, debugger.BreakpointOptions{Condition: "x > 0"})
	if err != nil {
		t.Fatalf("AddBreakpoint: %v", err)
	}
	if info.ID != 1 {
		t.Errorf("id = %d, want 1", info.ID)
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.written) < 2 {
		t.Fatalf("expected at least 2 writes, got %d: %v", len(sp.written), sp.written)
	}
}
