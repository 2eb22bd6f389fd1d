package dapbackend

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
	"github.com/xcodebuildmcp/debugger/internal/debugger/dap"
)

// fakeTransport is a minimal dap.Transport fake in the same hand-rolled
// style as dap/client_test.go's mockTransport, reused here because
// dapbackend drives a *dap.Client directly rather than through an
// interface seam.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []dap.Message
	recvChan chan dap.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{recvChan: make(chan dap.Message, 10)}
}

func (t *fakeTransport) Send(msg dap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Receive() (dap.Message, error) {
	msg, ok := <-t.recvChan
	if !ok {
		return dap.Message{}, io.EOF
	}
	return msg, nil
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) lastRequest() dap.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var req dap.Request
	_ = json.Unmarshal(t.sent[len(t.sent)-1].Content, &req)
	return req
}

func (t *fakeTransport) replyToLast(body any) {
	req := t.lastRequest()
	resp := dap.Response{Type: "response", RequestSeq: req.Seq, Success: true, Command: req.Command}
	if body != nil {
		b, _ := json.Marshal(body)
		resp.Body = b
	}
	content, _ := json.Marshal(resp)
	t.recvChan <- dap.Message{Content: content}
}

func (t *fakeTransport) waitForSent(tb testing.TB, n int) {
	tb.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		got := len(t.sent)
		t.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %d sent messages", n)
}

// newAttachedBackendForTest builds a Backend already past Attach(), wired
// to transport, so breakpoint tests can exercise the reconciliation path
// without a real lldb-dap process.
func newAttachedBackendForTest(transport dap.Transport) *Backend {
	b := New(nil, nil)
	client := dap.NewClient(transport, nil, false)
	b.mu.Lock()
	b.client = client
	b.attached = true
	b.mu.Unlock()
	return b
}

// TestDAPBackendBreakpointIDReconciliation drives spec.md §8's scenario 5:
// add three file breakpoints, adapter assigns ids [101,102,103], remove the
// middle one, and confirm the re-sent set's refreshed ids let a later
// removal by the new id succeed.
func TestDAPBackendBreakpointIDReconciliation(t *testing.T) {
	tr := newFakeTransport()
	b := newAttachedBackendForTest(tr)
	ctx := context.Background()
	sentSoFar := 0

	addOne := func(line int, wantIDs []int) debugger.BreakpointInfo {
		type result struct {
			info debugger.BreakpointInfo
			err  error
		}
		done := make(chan result, 1)
		go func() {
			info, err := b.AddBreakpoint(ctx, debugger.BreakpointSpec{
				Kind: debugger.BreakpointKindFileLine,
				File: "/a.c",
				Line: line,
			}, debugger.BreakpointOptions{})
			done <- result{info, err}
		}()

		sentSoFar++
		tr.waitForSent(t, sentSoFar)
		var results []dap.BreakpointResult
		for _, id := range wantIDs {
			results = append(results, dap.BreakpointResult{ID: id})
		}
		tr.replyToLast(dap.SetBreakpointsResponseBody{Breakpoints: results})

		r := <-done
		if r.err != nil {
			t.Fatalf("AddBreakpoint(line=%d): %v", line, r.err)
		}
		return r.info
	}

	bp1 := addOne(10, []int{101})
	if bp1.ID != 101 {
		t.Fatalf("bp1.ID = %d, want 101", bp1.ID)
	}
	bp2 := addOne(20, []int{101, 102})
	if bp2.ID != 102 {
		t.Fatalf("bp2.ID = %d, want 102", bp2.ID)
	}
	bp3 := addOne(30, []int{101, 102, 103})
	if bp3.ID != 103 {
		t.Fatalf("bp3.ID = %d, want 103", bp3.ID)
	}

	// Remove the middle breakpoint (102); remaining set is [line10, line30],
	// and the adapter reassigns fresh ids [201,202] on the re-send.
	removeDone := make(chan error, 1)
	go func() { removeDone <- b.RemoveBreakpoint(ctx, 102) }()
	tr.waitForSent(t, 4)
	tr.replyToLast(dap.SetBreakpointsResponseBody{Breakpoints: []dap.BreakpointResult{
		{ID: 201}, {ID: 202},
	}})
	if err := <-removeDone; err != nil {
		t.Fatalf("RemoveBreakpoint(102): %v", err)
	}

	// The stale id 102 must no longer resolve...
	staleDone := make(chan error, 1)
	go func() { staleDone <- b.RemoveBreakpoint(ctx, 102) }()
	select {
	case err := <-staleDone:
		if err == nil {
			t.Fatal("expected RemoveBreakpoint(102) to fail after reconciliation dropped it")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("RemoveBreakpoint(102) should fail fast without sending a request")
	}

	// ...but the refreshed id 201 (what used to be line 10) must.
	removeDone2 := make(chan error, 1)
	go func() { removeDone2 <- b.RemoveBreakpoint(ctx, 201) }()
	tr.waitForSent(t, 5)
	tr.replyToLast(dap.SetBreakpointsResponseBody{Breakpoints: []dap.BreakpointResult{
		{ID: 202},
	}})
	if err := <-removeDone2; err != nil {
		t.Fatalf("RemoveBreakpoint(201): %v", err)
	}
}

func TestDAPBackendResumeSetsRunningOptimistically(t *testing.T) {
	tr := newFakeTransport()
	b := newAttachedBackendForTest(tr)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- b.Resume(ctx, debugger.ResumeOptions{}) }()
	tr.waitForSent(t, 1)
	tr.replyToLast(nil)
	if err := <-done; err != nil {
		t.Fatalf("Resume: %v", err)
	}

	state, err := b.GetExecutionState(ctx, debugger.ExecutionStateOptions{})
	if err != nil {
		t.Fatalf("GetExecutionState: %v", err)
	}
	if state.Status != debugger.StatusRunning {
		t.Errorf("status = %v, want running", state.Status)
	}
}
