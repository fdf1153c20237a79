package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console logger on stderr.
// Verbosity 0 logs warnings and errors, 1 adds info, 2 or more adds debug.
func newLogger(v verbosity) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	switch {
	case v >= 2:
		lvl = zapcore.DebugLevel
	case v == 1:
		lvl = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.Encoding = "console"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapConfig.Sampling = nil
	zapConfig.DisableStacktrace = true
	zapConfig.OutputPaths = []string{"stderr"}
	return zapConfig.Build()
}
