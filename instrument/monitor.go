package instrument

import (
	"go.uber.org/zap"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/engine"
)

// Monitor selects which statistic the inserted probes record.
type Monitor = engine.Monitor

const (
	// Hotness counts executions of every straight-line instruction.
	Hotness = engine.MonitorHotness
	// Branch counts taken/not-taken edges of conditional branches.
	Branch = engine.MonitorBranch
)

// ParseMonitor resolves a monitor from its command-line name.
func ParseMonitor(name string) (Monitor, error) {
	switch name {
	case "hotness":
		return Hotness, nil
	case "branch":
		return Branch, nil
	default:
		return 0, errors.InvalidMonitor(name)
	}
}

// SetLogger installs a logger for transform debug output. The default is
// a no-op logger.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}
