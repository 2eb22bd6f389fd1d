package dap

import (
	"fmt"
	"io"
	"sync"
)

// Transport sends and receives DAP messages. Adapted from the teacher's
// dap.Transport interface; StdioTransport below plays the same role as the
// teacher's StdioTransport but delegates incremental parsing to Decoder.
type Transport interface {
	Send(msg Message) error
	Receive() (Message, error)
	Close() error
}

// StdioTransport implements Transport over a child process's stdin/stdout.
type StdioTransport struct {
	stdin  io.Writer
	stdout io.Reader
	closer io.Closer

	writeMu sync.Mutex

	readMu  sync.Mutex
	dec     *Decoder
	pending []Message
	readBuf []byte
}

// NewStdioTransport wraps already-opened stdin/stdout pipes (and an
// optional closer for process teardown) in a Transport.
func NewStdioTransport(stdin io.Writer, stdout io.Reader, closer io.Closer) *StdioTransport {
	return &StdioTransport{
		stdin:   stdin,
		stdout:  stdout,
		closer:  closer,
		dec:     NewDecoder(),
		readBuf: make([]byte, 4096),
	}
}

// Send writes msg in DAP wire format.
func (t *StdioTransport) Send(msg Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.stdin.Write(Encode(msg))
	return err
}

// Receive returns the next fully-parsed message, reading and feeding the
// decoder as needed. It must not hold a lock across the blocking stdout
// read: Send needs to make progress (e.g. the initial "initialize" request)
// while Receive is parked waiting for the adapter's first byte, exactly as
// the teacher's StdioTransport.Receive holds no mutex for the same reason.
func (t *StdioTransport) Receive() (Message, error) {
	for {
		t.readMu.Lock()
		if len(t.pending) > 0 {
			msg := t.pending[0]
			t.pending = t.pending[1:]
			t.readMu.Unlock()
			return msg, nil
		}
		t.readMu.Unlock()

		n, err := t.stdout.Read(t.readBuf)
		if n > 0 {
			t.readMu.Lock()
			msgs, decErr := t.dec.Feed(t.readBuf[:n])
			if decErr != nil {
				t.readMu.Unlock()
				return Message{}, decErr
			}
			t.pending = append(t.pending, msgs...)
			t.readMu.Unlock()
		}
		if err != nil {
			t.readMu.Lock()
			havePending := len(t.pending) > 0
			t.readMu.Unlock()
			if havePending {
				continue
			}
			return Message{}, fmt.Errorf("dap transport closed: %w", err)
		}
	}
}

// Close releases the underlying process resources.
func (t *StdioTransport) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
