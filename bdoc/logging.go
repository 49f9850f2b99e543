package bdoc

import "go.uber.org/zap"

// logger is the package-level logger, in the same spirit as rkive's
// package-level *log.Logger: silent until the embedding program opts in.
var logger = zap.NewNop()

// SetLogger installs the logger used for decode-path diagnostics (the
// only one logged is a rejected outer document length). Safe to call
// once at program startup;
// not safe for concurrent use with an in-progress Decode.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
