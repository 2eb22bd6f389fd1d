package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/xcodebuildmcp/debugger/internal/debugger"
)

// mgr returns the process-wide session manager, built lazily against the
// real lldb/lldb-dap binaries.
func mgr() *debugger.Manager { return debugger.Default() }

// resolveBackendFlag turns the --backend flag (bound through viper) into a
// BackendKind, returning ok=false when the flag was left empty so callers
// fall through to ResolveBackendKind's env/default precedence.
func resolveBackendFlag() (debugger.BackendKind, bool, error) {
	raw := strings.TrimSpace(viper.GetString("backend"))
	if raw == "" {
		return 0, false, nil
	}
	switch strings.ToLower(raw) {
	case "dap":
		return debugger.BackendDAP, true, nil
	case "lldb", "lldb-cli":
		return debugger.BackendCLI, true, nil
	default:
		return 0, false, fmt.Errorf("invalid --backend %q: want dap or lldb-cli", raw)
	}
}
