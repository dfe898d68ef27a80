// ABOUTME: Logger construction for the sinetone binaries
// ABOUTME: Writes to a log file and optionally streams to stdout
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger
type Options struct {
	// File is appended to when set
	File string

	// Level is a zap level name (debug, info, warn, error)
	Level string

	// Console also writes to Stdout; used when the TUI is off
	Console bool

	// Stdout overrides os.Stdout for console output
	Stdout io.Writer
}

// New builds a logger. The returned cleanup flushes and closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var cores []zapcore.Core
	var file *os.File

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}

	if opts.Console {
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(stdout), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}
