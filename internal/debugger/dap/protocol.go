package dap

import "encoding/json"

// ProtocolMessage is the envelope shared by requests, responses, and events,
// trimmed from the teacher's dap.ProtocolMessage to the fields this backend
// actually inspects.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"` // "request" | "response" | "event"
}

// Request is an outgoing DAP request.
type Request struct {
	Seq       int    `json:"seq"`
	Type      string `json:"type"`
	Command   string `json:"command"`
	Arguments any    `json:"arguments,omitempty"`
}

// Response is an incoming DAP response correlated to a Request by Seq.
type Response struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Event is an incoming DAP event.
type Event struct {
	Seq   int             `json:"seq"`
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// Capabilities is the subset of the adapter's initialize response this
// backend inspects (whether configurationDone is meaningful here).
type Capabilities struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest"`
}

// StoppedEventBody is the payload of a "stopped" event.
type StoppedEventBody struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
	ThreadID    int    `json:"threadId"`
	AllThreadsStopped bool `json:"allThreadsStopped"`
}

// ThreadsResponseBody is the body of a successful "threads" response.
type ThreadsResponseBody struct {
	Threads []Thread `json:"threads"`
}

// Thread describes one DAP thread.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StackTraceResponseBody is the body of a successful "stackTrace" response.
type StackTraceResponseBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
}

// StackFrame describes one frame.
type StackFrame struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Source Source `json:"source"`
}

// Source identifies a frame's originating file.
type Source struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ScopesResponseBody is the body of a successful "scopes" response.
type ScopesResponseBody struct {
	Scopes []Scope `json:"scopes"`
}

// Scope describes one variable scope within a frame.
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
}

// VariablesResponseBody is the body of a successful "variables" response.
type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

// Variable describes one resolved variable.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// EvaluateResponseBody is the body of a successful "evaluate" response.
type EvaluateResponseBody struct {
	Result string `json:"result"`
	Output string `json:"output,omitempty"`
}

// SourceBreakpoint is one entry of a setBreakpoints request.
type SourceBreakpoint struct {
	Line      int    `json:"line"`
	Condition string `json:"condition,omitempty"`
}

// FunctionBreakpoint is one entry of a setFunctionBreakpoints request.
type FunctionBreakpoint struct {
	Name      string `json:"name"`
	Condition string `json:"condition,omitempty"`
}

// SetBreakpointsArguments is the argument payload for "setBreakpoints".
type SetBreakpointsArguments struct {
	Source      Source             `json:"source"`
	Breakpoints []SourceBreakpoint `json:"breakpoints"`
}

// SetFunctionBreakpointsArguments is the argument payload for
// "setFunctionBreakpoints".
type SetFunctionBreakpointsArguments struct {
	Breakpoints []FunctionBreakpoint `json:"breakpoints"`
}

// BreakpointResult is one entry of a setBreakpoints/setFunctionBreakpoints
// response body.
type BreakpointResult struct {
	ID       int  `json:"id"`
	Verified bool `json:"verified"`
}

// SetBreakpointsResponseBody is the response body for either breakpoint
// set request.
type SetBreakpointsResponseBody struct {
	Breakpoints []BreakpointResult `json:"breakpoints"`
}
