package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

// EventHandlers holds the subscriptions the DAP backend cares about,
// adapted from the teacher's Client.eventHandlers struct, trimmed to the
// events the backend actually consumes (spec.md §4.4).
type EventHandlers struct {
	OnStopped    func(StoppedEventBody)
	OnContinued  func()
	OnExited     func()
	OnTerminated func()
}

type pendingRequest struct {
	done chan struct{}
	resp Response
	err  error
}

// Client implements DAP request/response correlation and event dispatch
// over a Transport, adapted from the teacher's dap.Client: atomic seq
// counter, mutex-guarded pending map, a receive loop goroutine. Unlike the
// teacher, Send here takes a per-call timeout (the DAP backend passes
// config.DAPRequestTimeoutMS) rather than relying solely on caller context.
type Client struct {
	transport Transport
	log       *telemetry.Logger
	logEvents bool

	seq int64

	mu      sync.Mutex
	pending map[int]*pendingRequest

	handlers EventHandlers

	done     chan struct{}
	closeErr error
	closeMu  sync.Mutex
	closeOne sync.Once
}

// NewClient spawns the receive loop and returns a ready-to-use Client.
func NewClient(transport Transport, log *telemetry.Logger, logEvents bool) *Client {
	if log == nil {
		log = telemetry.Noop()
	}
	c := &Client{
		transport: transport,
		log:       log.WithComponent("debugger.dap.client"),
		logEvents: logEvents,
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// SetHandlers installs the event subscription set under the client mutex.
// Events delivered before the call are not replayed, so the DAP backend
// installs its handlers before sending any request.
func (c *Client) SetHandlers(h EventHandlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			c.fail(err)
			return
		}
		var env ProtocolMessage
		if jsonErr := json.Unmarshal(msg.Content, &env); jsonErr != nil {
			c.log.Warn("dap: dropping unparseable message: %v", jsonErr)
			continue
		}
		switch env.Type {
		case "response":
			var resp Response
			if err := json.Unmarshal(msg.Content, &resp); err != nil {
				c.log.Warn("dap: dropping unparseable response: %v", err)
				continue
			}
			c.handleResponse(resp)
		case "event":
			var ev Event
			if err := json.Unmarshal(msg.Content, &ev); err != nil {
				c.log.Warn("dap: dropping unparseable event: %v", err)
				continue
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Client) handleResponse(resp Response) {
	c.mu.Lock()
	pr, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	pr.resp = resp
	close(pr.done)
}

func (c *Client) handleEvent(ev Event) {
	if c.logEvents {
		c.log.Debug("dap event: %s", ev.Event)
	}
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()

	switch ev.Event {
	case "stopped":
		if h.OnStopped == nil {
			return
		}
		var body StoppedEventBody
		_ = json.Unmarshal(ev.Body, &body)
		h.OnStopped(body)
	case "continued":
		if h.OnContinued != nil {
			h.OnContinued()
		}
	case "exited":
		if h.OnExited != nil {
			h.OnExited()
		}
	case "terminated":
		if h.OnTerminated != nil {
			h.OnTerminated()
		}
	}
}

// fail rejects every pending request once the transport dies.
func (c *Client) fail(err error) {
	c.closeMu.Lock()
	c.closeErr = err
	c.closeMu.Unlock()

	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range pending {
		pr.err = err
		close(pr.done)
	}
	c.closeOne.Do(func() { close(c.done) })
}

// Send issues a DAP request and waits for its correlated response, subject
// to ctx and the given timeout. The returned body is the raw response
// body, valid only when err is nil.
func (c *Client) Send(ctx context.Context, command string, args any, timeout time.Duration) (json.RawMessage, error) {
	seq := int(atomic.AddInt64(&c.seq, 1))
	req := Request{Seq: seq, Type: "request", Command: command, Arguments: args}
	content, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", command, err)
	}

	pr := &pendingRequest{done: make(chan struct{})}
	c.mu.Lock()
	c.pending[seq] = pr
	c.mu.Unlock()

	if err := c.transport.Send(Message{ContentLength: len(content), Content: content}); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, fmt.Errorf("send %s request: %w", command, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-pr.done:
		if pr.err != nil {
			return nil, pr.err
		}
		if !pr.resp.Success {
			msg := pr.resp.Message
			if msg == "" {
				msg = "DAP request failed"
			}
			return nil, fmt.Errorf("%s: %s", command, msg)
		}
		return pr.resp.Body, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, &errs.TimeoutError{Operation: command, Budget: timeout}
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.closeErrOrDefault()
	}
}

func (c *Client) closeErrOrDefault() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return fmt.Errorf("dap client closed")
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
