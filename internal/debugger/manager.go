package debugger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

// session is the manager's mutable, privately-owned record; SessionInfo is
// the immutable copy handed to callers.
type session struct {
	info    SessionInfo
	backend Backend
}

// Manager creates, routes to, and disposes debug sessions, grounded on the
// teacher's single coordinating Application struct and the
// ctagard-dap-mcp retrieval's SessionManager (sessions map + mutex,
// uuid-keyed ids).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	current  string

	factory BackendFactory
	log     *telemetry.Logger
}

// NewManager constructs a Manager that builds backends through factory.
func NewManager(factory BackendFactory, log *telemetry.Logger) *Manager {
	if log == nil {
		log = telemetry.Noop()
	}
	return &Manager{
		sessions: make(map[string]*session),
		factory:  factory,
		log:      log.WithComponent("debugger.manager"),
	}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the process-wide singleton manager, mirroring the spec's
// getDefaultDebuggerManager(). Initialized lazily with the real backend
// factory at first use.
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager(RealBackendFactory, telemetry.Default())
	})
	return defaultManager
}

// CreateSessionOptions configures createSession.
type CreateSessionOptions struct {
	SimulatorID string
	PID         int
	WaitFor     bool

	Backend   BackendKind
	HasBackend bool
}

// CreateSession resolves a backend kind, attaches, and records a new
// session on success. Any attach failure disposes the backend and never
// inserts a session.
func (m *Manager) CreateSession(ctx context.Context, opts CreateSessionOptions) (SessionInfo, error) {
	kind, err := ResolveBackendKind(opts.Backend, opts.HasBackend)
	if err != nil {
		return SessionInfo{}, err
	}

	backend, err := m.factory(kind)
	if err != nil {
		return SessionInfo{}, err
	}

	if err := backend.Attach(ctx, AttachOptions{PID: opts.PID, SimulatorID: opts.SimulatorID, WaitFor: opts.WaitFor}); err != nil {
		_ = backend.Dispose()
		return SessionInfo{}, err
	}

	now := time.Now()
	info := SessionInfo{
		ID:          uuid.NewString(),
		Backend:     kind,
		PID:         opts.PID,
		SimulatorID: opts.SimulatorID,
		CreatedAt:   now,
		LastUsedAt:  now,
	}

	m.mu.Lock()
	m.sessions[info.ID] = &session{info: info, backend: backend}
	m.mu.Unlock()

	return info, nil
}

// GetSession resolves id, or the current session if id is empty. Returns
// ok=false if neither resolves.
func (m *Manager) GetSession(id string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookupLocked(id)
	if !ok {
		return SessionInfo{}, false
	}
	return s.info, true
}

func (m *Manager) lookupLocked(id string) (*session, bool) {
	if id == "" {
		id = m.current
	}
	if id == "" {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// SetCurrentSession fails if id is not present.
func (m *Manager) SetCurrentSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return errs.ErrNotFound
	}
	m.current = id
	return nil
}

// FindSessionForSimulator prefers the current session if it matches, else
// the first match in CreatedAt order (see insertionOrderLocked). Go maps
// have no stable iteration order and the manager does not record the order
// in which sessions were inserted, so sessions created concurrently may be
// ordered differently from their insertion into the table.
func (m *Manager) FindSessionForSimulator(simulatorID string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[m.current]; ok && cur.info.SimulatorID == simulatorID {
		return cur.info, true
	}
	for _, id := range m.insertionOrderLocked() {
		s := m.sessions[id]
		if s.info.SimulatorID == simulatorID {
			return s.info, true
		}
	}
	return SessionInfo{}, false
}

// insertionOrderLocked returns session ids ordered by CreatedAt, used as a
// stand-in for true insertion order (ties broken by id for determinism).
func (m *Manager) insertionOrderLocked() []string {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := m.sessions[ids[j-1]], m.sessions[ids[j]]
			swap := a.info.CreatedAt.After(b.info.CreatedAt)
			if a.info.CreatedAt.Equal(b.info.CreatedAt) {
				swap = ids[j-1] > ids[j]
			}
			if swap {
				ids[j-1], ids[j] = ids[j], ids[j-1]
			}
		}
	}
	return ids
}

// DetachSession requires a session, detaches, disposes (best-effort), and
// removes it from the table. Detach errors propagate; dispose errors are
// swallowed after logging so they do not mask the detach error.
func (m *Manager) DetachSession(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.lookupLocked(id)
	m.mu.Unlock()
	if !ok {
		return errs.ErrNotFound
	}

	detachErr := s.backend.Detach(ctx)
	if disposeErr := s.backend.Dispose(); disposeErr != nil {
		m.log.Debug("dispose after detach failed: %v", disposeErr)
	}

	m.mu.Lock()
	delete(m.sessions, s.info.ID)
	if m.current == s.info.ID {
		m.current = ""
	}
	m.mu.Unlock()

	return detachErr
}

// routed resolves id (or current), forwards to fn, and updates LastUsedAt
// exactly once regardless of fn's outcome.
func (m *Manager) routed(id string, fn func(Backend) error) error {
	m.mu.Lock()
	s, ok := m.lookupLocked(id)
	m.mu.Unlock()
	if !ok {
		return errs.ErrNotFound
	}

	err := fn(s.backend)

	m.mu.Lock()
	if cur, stillPresent := m.sessions[s.info.ID]; stillPresent {
		cur.info.LastUsedAt = time.Now()
	}
	m.mu.Unlock()

	return err
}

// RunCommand forwards to the session's backend.
func (m *Manager) RunCommand(ctx context.Context, id, command string, opts RunCommandOptions) (string, error) {
	var result string
	err := m.routed(id, func(b Backend) error {
		var innerErr error
		result, innerErr = b.RunCommand(ctx, command, opts)
		return innerErr
	})
	return result, err
}

// AddBreakpoint forwards to the session's backend.
func (m *Manager) AddBreakpoint(ctx context.Context, id string, spec BreakpointSpec, opts BreakpointOptions) (BreakpointInfo, error) {
	var result BreakpointInfo
	err := m.routed(id, func(b Backend) error {
		var innerErr error
		result, innerErr = b.AddBreakpoint(ctx, spec, opts)
		return innerErr
	})
	return result, err
}

// RemoveBreakpoint forwards to the session's backend.
func (m *Manager) RemoveBreakpoint(ctx context.Context, id string, breakpointID int) error {
	return m.routed(id, func(b Backend) error {
		return b.RemoveBreakpoint(ctx, breakpointID)
	})
}

// GetStack forwards to the session's backend.
func (m *Manager) GetStack(ctx context.Context, id string, opts StackOptions) (string, error) {
	var result string
	err := m.routed(id, func(b Backend) error {
		var innerErr error
		result, innerErr = b.GetStack(ctx, opts)
		return innerErr
	})
	return result, err
}

// GetVariables forwards to the session's backend.
func (m *Manager) GetVariables(ctx context.Context, id string, opts VariablesOptions) (string, error) {
	var result string
	err := m.routed(id, func(b Backend) error {
		var innerErr error
		result, innerErr = b.GetVariables(ctx, opts)
		return innerErr
	})
	return result, err
}

// GetExecutionState forwards to the session's backend.
func (m *Manager) GetExecutionState(ctx context.Context, id string, opts ExecutionStateOptions) (ExecutionState, error) {
	var result ExecutionState
	err := m.routed(id, func(b Backend) error {
		var innerErr error
		result, innerErr = b.GetExecutionState(ctx, opts)
		return innerErr
	})
	return result, err
}

// ResumeSession forwards to the session's backend.
func (m *Manager) ResumeSession(ctx context.Context, id string, opts ResumeOptions) error {
	return m.routed(id, func(b Backend) error {
		return b.Resume(ctx, opts)
	})
}

// DisposeAll best-effort detaches then disposes every session and clears
// all state.
func (m *Manager) DisposeAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.current = ""
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.backend.Detach(ctx); err != nil {
			m.log.Debug("disposeAll: detach %s failed: %v", s.info.ID, err)
		}
		if err := s.backend.Dispose(); err != nil {
			m.log.Debug("disposeAll: dispose %s failed: %v", s.info.ID, err)
		}
	}
}
