package debugger

import "github.com/xcodebuildmcp/debugger/internal/debugger/config"

// ResolveBackendKind implements spec.md §4.8's selection order: explicit
// argument wins; else env XCODEBUILDMCP_DEBUGGER_BACKEND; else default dap.
// explicit is consulted only when ok is true, so callers can distinguish
// "caller passed no preference" from an explicit BackendDAP (the zero value).
func ResolveBackendKind(explicit BackendKind, ok bool) (BackendKind, error) {
	var explicitStr string
	if ok {
		explicitStr = explicit.String()
	}
	name, err := config.ResolveBackendKindString(explicitStr)
	if err != nil {
		return 0, err
	}
	if name == "lldb-cli" {
		return BackendCLI, nil
	}
	return BackendDAP, nil
}
