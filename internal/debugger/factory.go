package debugger

import (
	"fmt"

	"github.com/xcodebuildmcp/debugger/internal/debugger/cli"
	"github.com/xcodebuildmcp/debugger/internal/debugger/cmdexec"
	"github.com/xcodebuildmcp/debugger/internal/debugger/dapbackend"
	"github.com/xcodebuildmcp/debugger/internal/debugger/procio"
	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

// RealBackendFactory builds a backend that talks to the real lldb /
// lldb-dap binaries on the host, used by Default(). Tests construct a
// Manager with a fake BackendFactory instead.
func RealBackendFactory(kind BackendKind) (Backend, error) {
	log := telemetry.Default()
	switch kind {
	case BackendCLI:
		return cli.New(procio.PTYSpawner{}, log), nil
	case BackendDAP:
		return dapbackend.New(dapbackend.ProcessLauncher{Exec: cmdexec.OSExecutor{}}, log), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %v", kind)
	}
}
