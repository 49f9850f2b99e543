package driver

import "go.uber.org/zap"

// logger is the package-level logger for connection-lifecycle events:
// port fencing, primary changes, failed probes, and failure to open a
// pool for a new primary. Dial attempts and retry exhaustion are not
// logged. Silent
// by default, in the same spirit as rkive's package-level *log.Logger —
// a caller opts in with SetLogger.
var logger = zap.NewNop()

// SetLogger installs the logger used by the driver package. Safe to
// call once at program startup, before any Connector is constructed.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
