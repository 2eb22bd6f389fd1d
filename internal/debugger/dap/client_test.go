package dap

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"
)

// mockTransport implements Transport for testing, following the shape of
// the teacher's dap/client_test.go mockTransport.
type mockTransport struct {
	mu       sync.Mutex
	sent     []Message
	recvChan chan Message
	closed   bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{recvChan: make(chan Message, 10)}
}

func (t *mockTransport) Send(msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return io.ErrClosedPipe
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *mockTransport) Receive() (Message, error) {
	msg, ok := <-t.recvChan
	if !ok {
		return Message{}, io.EOF
	}
	return msg, nil
}

func (t *mockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.recvChan)
	}
	return nil
}

func (t *mockTransport) lastSent() Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var req Request
	_ = json.Unmarshal(t.sent[len(t.sent)-1].Content, &req)
	return req
}

func (t *mockTransport) replyToLast(success bool, body any) {
	req := t.lastSent()
	resp := Response{Seq: req.Seq + 1000, Type: "response", RequestSeq: req.Seq, Success: success, Command: req.Command}
	if body != nil {
		b, _ := json.Marshal(body)
		resp.Body = b
	}
	content, _ := json.Marshal(resp)
	t.recvChan <- Message{Content: content}
}

func TestClientSendResolvesOnMatchingResponse(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil, false)
	defer c.Close()

	done := make(chan struct{})
	var body json.RawMessage
	var sendErr error
	go func() {
		body, sendErr = c.Send(context.Background(), "initialize", map[string]any{}, time.Second)
		close(done)
	}()

	waitForSent(t, tr, 1)
	tr.replyToLast(true, map[string]any{"ok": true})

	<-done
	if sendErr != nil {
		t.Fatalf("Send returned error: %v", sendErr)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestClientSendSurfacesFailureMessage(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil, false)
	defer c.Close()

	done := make(chan struct{})
	var sendErr error
	go func() {
		_, sendErr = c.Send(context.Background(), "attach", map[string]any{}, time.Second)
		close(done)
	}()

	waitForSent(t, tr, 1)
	req := tr.lastSent()
	resp := Response{Type: "response", RequestSeq: req.Seq, Success: false, Command: "attach", Message: "no such process"}
	content, _ := json.Marshal(resp)
	tr.recvChan <- Message{Content: content}

	<-done
	if sendErr == nil {
		t.Fatal("expected an error")
	}
	if sendErr.Error() != "attach: no such process" {
		t.Errorf("error = %q, want %q", sendErr.Error(), "attach: no such process")
	}
}

func TestClientSendTimesOut(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil, false)
	defer c.Close()

	_, err := c.Send(context.Background(), "threads", map[string]any{}, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestClientDispatchesStoppedEvent(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil, false)
	defer c.Close()

	gotCh := make(chan StoppedEventBody, 1)
	c.SetHandlers(EventHandlers{OnStopped: func(b StoppedEventBody) { gotCh <- b }})

	ev := Event{Type: "event", Event: "stopped"}
	body, _ := json.Marshal(StoppedEventBody{Reason: "breakpoint", ThreadID: 3})
	ev.Body = body
	content, _ := json.Marshal(ev)
	tr.recvChan <- Message{Content: content}

	select {
	case got := <-gotCh:
		if got.Reason != "breakpoint" || got.ThreadID != 3 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped event")
	}
}

func waitForSent(t *testing.T, tr *mockTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tr.mu.Lock()
		got := len(tr.sent)
		tr.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages", n)
}
