// Package logging builds the application's zap logger. The terminal UI owns
// stdout, so log output goes to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the log destination and verbosity.
type Options struct {
	// File is the log file path. Empty disables logging.
	File string

	// Level is a zap level name such as "debug" or "info".
	Level string

	// Debug forces the debug level.
	Debug bool
}

// New returns a sugared logger writing to opts.File, and a cleanup func
// that flushes it. With no file configured a no-op logger is returned.
func New(opts Options) (*zap.SugaredLogger, func(), error) {
	if opts.File == "" {
		return zap.NewNop().Sugar(), func() {}, nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.OutputPaths = []string{opts.File}
	config.ErrorOutputPaths = []string{opts.File}
	config.DisableStacktrace = !opts.Debug
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	return logger.Sugar(), func() { _ = logger.Sync() }, nil
}

// ParseLevel converts a level name into an atomic level. An empty name
// means info.
func ParseLevel(name string) (zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if name == "" {
		level.SetLevel(zap.InfoLevel)
		return level, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
