// Package logging builds the single zap.Logger shared by every component.
//
// engramd never uses a package-level logger singleton; every constructor
// (store.New, processor.New, daemon.NewManager, search.New, ...) takes a *zap.Logger
// so the composition root in cmd/engramd wires exactly one logger per process.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-shaped logger writing JSON to stderr, leaving
// stdout free for the MCP stdio transport. Setting dev=true switches to a
// human-readable console encoder at debug level, for local development.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)
	return zap.New(core), nil
}

// NewFromEnv honors ENGRAMD_LOG_DEV the way the rest of the config surface
// reads its environment variables (see internal/config).
func NewFromEnv() (*zap.Logger, error) {
	return New(os.Getenv("ENGRAMD_LOG_DEV") == "1")
}

// Noop returns a logger that discards everything, for tests that don't care
// about log output.
func Noop() *zap.Logger {
	return zap.NewNop()
}
