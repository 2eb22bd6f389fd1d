package procio

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestPTYSpawnerEchoesWrittenInput(t *testing.T) {
	proc, err := PTYSpawner{}.Spawn(context.Background(), "cat", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer proc.Close()
	defer func() {
		if proc.IsRunning() {
			_ = proc.Kill()
		}
	}()

	if _, err := proc.Stdin.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) && len(got) < len("hello\n") {
		n, err := proc.Output.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil && err != io.EOF {
			t.Fatalf("read: %v", err)
		}
		if err == io.EOF {
			break
		}
	}
	if string(got) == "" {
		t.Fatal("expected to read back the echoed input")
	}

	if err := proc.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for process exit after Kill")
	}
	if proc.State() != StateKilled && proc.State() != StateExited {
		t.Errorf("state = %v, want killed or exited", proc.State())
	}
	if proc.IsRunning() {
		t.Error("expected IsRunning to be false after exit")
	}
}

func TestPTYSpawnerPID(t *testing.T) {
	proc, err := PTYSpawner{}.Spawn(context.Background(), "cat", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer proc.Close()
	defer func() { _ = proc.Kill() }()

	if proc.PID() <= 0 {
		t.Errorf("PID() = %d, want positive", proc.PID())
	}
}

func TestProcessExitDetailBeforeExit(t *testing.T) {
	p := &Process{}
	if detail := p.ExitDetail(); detail == "" {
		t.Error("expected a non-empty exit detail even before the process has exited")
	}
}
