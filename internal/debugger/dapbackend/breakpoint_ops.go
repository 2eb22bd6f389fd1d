package dapbackend

import (
	"context"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
	"github.com/xcodebuildmcp/debugger/internal/debugger/dap"
	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
)

// AddBreakpoint appends spec to its resource's local record list and
// re-sends the resource's entire set, per spec §4.4/§4.5.
func (b *Backend) AddBreakpoint(ctx context.Context, spec debugger.BreakpointSpec, opts debugger.BreakpointOptions) (debugger.BreakpointInfo, error) {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return debugger.BreakpointInfo{}, err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return debugger.BreakpointInfo{}, err
	}

	spec.Condition = opts.Condition

	b.bpMu.Lock()
	defer b.bpMu.Unlock()

	switch spec.Kind {
	case debugger.BreakpointKindFileLine:
		b.bp.files[spec.File] = append(b.bp.files[spec.File], &record{spec: spec})
		if err := b.resendFileLocked(ctx, client, spec.File); err != nil {
			return debugger.BreakpointInfo{}, err
		}
		recs := b.bp.files[spec.File]
		added := recs[len(recs)-1]
		return debugger.BreakpointInfo{ID: added.id, Spec: added.spec, RawOutput: added.rawOutput}, nil
	case debugger.BreakpointKindFunction:
		b.bp.functions = append(b.bp.functions, &record{spec: spec})
		if err := b.resendFunctionsLocked(ctx, client); err != nil {
			return debugger.BreakpointInfo{}, err
		}
		added := b.bp.functions[len(b.bp.functions)-1]
		return debugger.BreakpointInfo{ID: added.id, Spec: added.spec, RawOutput: added.rawOutput}, nil
	default:
		return debugger.BreakpointInfo{}, &errs.ProtocolError{Detail: "unknown breakpoint kind"}
	}
}

// RemoveBreakpoint locates id's record (file-line or function), drops it,
// and re-sends the owning resource's set. Unknown id is NotFound.
func (b *Backend) RemoveBreakpoint(ctx context.Context, id int) error {
	release, err := b.q.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	client, err := b.checkUsable()
	if err != nil {
		return err
	}

	b.bpMu.Lock()
	defer b.bpMu.Unlock()

	_, file, found := b.bp.findByID(id)
	if !found {
		return errs.ErrNotFound
	}

	if file != "" {
		recs := b.bp.files[file]
		filtered := recs[:0:0]
		for _, r := range recs {
			if r.id != id {
				filtered = append(filtered, r)
			}
		}
		b.bp.files[file] = filtered
		return b.resendFileLocked(ctx, client, file)
	}

	filtered := b.bp.functions[:0:0]
	for _, r := range b.bp.functions {
		if r.id != id {
			filtered = append(filtered, r)
		}
	}
	b.bp.functions = filtered
	return b.resendFunctionsLocked(ctx, client)
}

// resendFileLocked re-sends the full breakpoint set for one file and
// refreshes local ids from the response, zipping by position. bpMu must
// already be held.
func (b *Backend) resendFileLocked(ctx context.Context, client *dap.Client, file string) error {
	recs := b.bp.files[file]
	args := dap.SetBreakpointsArguments{Source: dap.Source{Path: file}}
	for _, r := range recs {
		args.Breakpoints = append(args.Breakpoints, dap.SourceBreakpoint{
			Line: r.spec.Line, Condition: r.spec.Condition,
		})
	}

	body, err := client.Send(ctx, "setBreakpoints", args, b.requestTimeout())
	if err != nil {
		return err
	}
	var resp dap.SetBreakpointsResponseBody
	_ = unmarshalInto(body, &resp)
	b.refreshIDs(recs, resp.Breakpoints)
	return nil
}

// resendFunctionsLocked re-sends the full function-breakpoint set. bpMu
// must already be held.
func (b *Backend) resendFunctionsLocked(ctx context.Context, client *dap.Client) error {
	recs := b.bp.functions
	args := dap.SetFunctionBreakpointsArguments{}
	for _, r := range recs {
		args.Breakpoints = append(args.Breakpoints, dap.FunctionBreakpoint{
			Name: r.spec.FunctionName, Condition: r.spec.Condition,
		})
	}

	body, err := client.Send(ctx, "setFunctionBreakpoints", args, b.requestTimeout())
	if err != nil {
		return err
	}
	var resp dap.SetBreakpointsResponseBody
	_ = unmarshalInto(body, &resp)
	b.refreshIDs(recs, resp.Breakpoints)
	return nil
}

// refreshIDs zips the sent record list against the adapter's response by
// position, assigning a synthetic id (via the allocator) wherever the
// adapter omitted one. Tolerates a response shorter than the sent list.
func (b *Backend) refreshIDs(recs []*record, results []dap.BreakpointResult) {
	for i, r := range recs {
		if i >= len(results) {
			if r.id == 0 {
				r.id = b.bp.alloc.allocate()
			}
			continue
		}
		if results[i].ID != 0 {
			r.id = results[i].ID
		} else if r.id == 0 {
			r.id = b.bp.alloc.allocate()
		}
	}
}
