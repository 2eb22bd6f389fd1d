// Package dap implements the Debug Adapter Protocol framing, message types,
// and request/response client used by the DAP backend. The framing here is
// adapted from the teacher's internal/integration/debug/dap package
// (writeMessage/readMessage's exact Content-Length wire format), but
// restructured around an incremental Decoder rather than a blocking
// *bufio.Reader so it can be driven with arbitrary chunk boundaries in
// tests (spec.md §8's chunking property) without a live process.
package dap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Message is a decoded DAP frame: headers plus a raw JSON payload.
type Message struct {
	ContentLength int
	ContentType   string
	Content       json.RawMessage
}

// MaxContentLength bounds a single message's declared size, matching the
// teacher's 10MB guard against a runaway Content-Length header.
const MaxContentLength = 10 * 1024 * 1024

// Decoder incrementally parses a stream of length-prefixed DAP messages.
// Feed may be called with any chunking of the underlying byte stream,
// including chunks that split a header line or a payload in the middle.
type Decoder struct {
	buf bytes.Buffer
}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Feed appends p to the internal buffer and returns every complete message
// that can now be parsed out of it. A header that cannot be parsed (e.g. a
// non-numeric Content-Length) is discarded up through the terminating
// "\r\n\r\n", and scanning resumes after it, per spec.md §6's recovery rule.
func (d *Decoder) Feed(p []byte) ([]Message, error) {
	d.buf.Write(p)

	var out []Message
	for {
		msg, consumed, ok, recoverable := tryParse(d.buf.Bytes())
		if !ok {
			if !recoverable {
				return out, nil // wait for more bytes
			}
			// A bad header was found and discarded; tryParse already
			// reports how many bytes to drop via consumed.
			d.buf.Next(consumed)
			continue
		}
		d.buf.Next(consumed)
		out = append(out, msg)
	}
}

// tryParse attempts to parse exactly one message from the front of buf.
// ok=true means a full message was parsed (consumed bytes for it).
// ok=false, recoverable=false means more bytes are needed.
// ok=false, recoverable=true means a malformed header was found and
// `consumed` bytes (through the end of that header block) should be
// discarded before retrying.
func tryParse(buf []byte) (msg Message, consumed int, ok bool, recoverable bool) {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return Message{}, 0, false, false
	}
	headerBlock := string(buf[:headerEnd])
	afterHeaders := headerEnd + 4

	contentLength := -1
	contentType := ""
	malformed := false

	for _, line := range strings.Split(headerBlock, "\r\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			malformed = true
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		switch name {
		case "content-length":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > MaxContentLength {
				malformed = true
				continue
			}
			contentLength = n
		case "content-type":
			contentType = value
		}
	}

	if malformed || contentLength < 0 {
		// Discard through this header block; caller retries on the
		// remaining buffer, which may contain a valid message after it.
		return Message{}, afterHeaders, false, true
	}

	if len(buf) < afterHeaders+contentLength {
		return Message{}, 0, false, false // payload not fully arrived yet
	}

	content := make([]byte, contentLength)
	copy(content, buf[afterHeaders:afterHeaders+contentLength])

	return Message{
		ContentLength: contentLength,
		ContentType:   contentType,
		Content:       content,
	}, afterHeaders + contentLength, true, false
}

// Encode renders msg in the exact Content-Length wire format DAP requires.
func Encode(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(msg.Content))
	if msg.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", msg.ContentType)
	}
	b.WriteString("\r\n")
	b.Write(msg.Content)
	return b.Bytes()
}
