// Package config resolves the session manager's environment-variable
// surface (spec.md §6) into typed values. It stays on the standard
// library's os.Getenv rather than spf13/viper: these are four independent,
// process-wide scalars, read afresh on every call (the DAP timeout on every
// DAP request) with no file/flag layering, which is exactly the case the
// teacher's own internal/config package (layered file+env+flag resolution with live
// reload) is overkill for. viper is used instead by cmd/xcdebugctl, which
// does have file/flag layering to merge.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/xcodebuildmcp/debugger/internal/debugger/errs"
)

const (
	envBackend        = "XCODEBUILDMCP_DEBUGGER_BACKEND"
	envDAPTimeoutMS   = "XCODEBUILDMCP_DAP_REQUEST_TIMEOUT_MS"
	envDAPLogEvents   = "XCODEBUILDMCP_DAP_LOG_EVENTS"
	envUIGuardMode    = "XCODEBUILDMCP_UI_DEBUGGER_GUARD_MODE"

	// DefaultDAPRequestTimeoutMS is used when the env var is unset or invalid.
	DefaultDAPRequestTimeoutMS = 30000
	// DefaultCommandTimeoutMS is the per-command budget for both backends.
	DefaultCommandTimeoutMS = 30000
	// DefaultStartupTimeoutMS is the CLI backend's readiness budget.
	DefaultStartupTimeoutMS = 10000
)

// GuardMode controls the UI-automation guard's verdict strength.
type GuardMode int

const (
	// GuardModeError blocks tool calls while the debugger is stopped.
	GuardModeError GuardMode = iota
	// GuardModeWarn returns a warning but does not block.
	GuardModeWarn
	// GuardModeOff disables the guard entirely.
	GuardModeOff
)

// ResolveBackendKindString implements spec §4.8's selection order against a
// raw explicit string (already lowercased by the caller if desired) and the
// env var, falling back to "dap". It returns the normalized kind name
// ("dap" or "lldb-cli") rather than a debugger.BackendKind to avoid an
// import cycle; callers map the string to debugger.BackendKind.
func ResolveBackendKindString(explicit string) (string, error) {
	raw := explicit
	if raw == "" {
		raw = os.Getenv(envBackend)
	}
	if raw == "" {
		return "dap", nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lldb", "lldb-cli":
		return "lldb-cli", nil
	case "dap":
		return "dap", nil
	default:
		return "", &errs.ProtocolError{Detail: "invalid " + envBackend + ": " + raw}
	}
}

// DAPRequestTimeoutMS reads XCODEBUILDMCP_DAP_REQUEST_TIMEOUT_MS, falling
// back to DefaultDAPRequestTimeoutMS for anything unset, non-numeric, or
// non-positive.
func DAPRequestTimeoutMS() int {
	raw := os.Getenv(envDAPTimeoutMS)
	if raw == "" {
		return DefaultDAPRequestTimeoutMS
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return DefaultDAPRequestTimeoutMS
	}
	return v
}

// DAPLogEvents reports whether XCODEBUILDMCP_DAP_LOG_EVENTS enables debug
// tracing of incoming DAP events.
func DAPLogEvents() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(envDAPLogEvents)), "true")
}

// ResolveGuardMode implements the guard's mode resolution: explicit value
// (if ok is true) wins, else the env var, else GuardModeError.
func ResolveGuardMode(explicit GuardMode, ok bool) GuardMode {
	if ok {
		return explicit
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envUIGuardMode))) {
	case "warn":
		return GuardModeWarn
	case "off":
		return GuardModeOff
	case "error", "":
		return GuardModeError
	default:
		return GuardModeError
	}
}
