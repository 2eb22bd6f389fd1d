// Package queue implements the per-backend FIFO command serialization
// required by the concurrency model: at most one command may be in flight
// against a backend at any time, and late-arriving requests are admitted in
// arrival order.
//
// The teacher's packages protect per-field state with ad hoc sync.RWMutex
// (see debug.Session's stateMu/threadsMu/breakpointsMu); this generalizes
// that discipline into a single reusable admission ticket covering the full
// request->response span of one command, rather than one mutex per field.
package queue

import "context"

// Queue hands out one ticket at a time, in FIFO order of acquisition.
type Queue struct {
	ticket chan struct{}
}

// New returns a ready-to-use Queue.
func New() *Queue {
	q := &Queue{ticket: make(chan struct{}, 1)}
	q.ticket <- struct{}{}
	return q
}

// Acquire blocks until it is this caller's turn, or ctx is done. The
// returned release func must be called exactly once to admit the next
// waiter; it is safe to defer immediately after a nil error.
func (q *Queue) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-q.ticket:
		return func() { q.ticket <- struct{}{} }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}
