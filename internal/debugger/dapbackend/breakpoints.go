package dapbackend

import "github.com/xcodebuildmcp/debugger/internal/debugger"

// record is one locally-tracked breakpoint entry before it is re-sent to
// the adapter as part of its resource's full set.
type record struct {
	id        int // 0 until assigned
	spec      debugger.BreakpointSpec
	rawOutput string
}

// allocator hands out strictly decreasing synthetic ids starting at -1,
// used whenever the adapter's response omits an id for an entry, per
// spec §4.4. Synthetic ids never collide with adapter-assigned ids, which
// are always >= 0.
type allocator struct {
	next int
}

func newAllocator() *allocator { return &allocator{next: -1} }

func (a *allocator) allocate() int {
	id := a.next
	a.next--
	return id
}

// byFile groups file-line breakpoint records by absolute path, since each
// setBreakpoints call covers exactly one source's full set.
type byFile map[string][]*record

// findByID searches every per-file list and the function list for id.
func (bp *breakpointState) findByID(id int) (*record, string, bool) {
	for file, recs := range bp.files {
		for _, r := range recs {
			if r.id == id {
				return r, file, true
			}
		}
	}
	for _, r := range bp.functions {
		if r.id == id {
			return r, "", true
		}
	}
	return nil, "", false
}

// breakpointState is the DAP backend's full local bookkeeping: it must own
// the complete picture because setting one breakpoint replaces its
// resource's entire set.
type breakpointState struct {
	files     byFile
	functions []*record
	alloc     *allocator
}

func newBreakpointState() *breakpointState {
	return &breakpointState{
		files: make(byFile),
		alloc: newAllocator(),
	}
}
