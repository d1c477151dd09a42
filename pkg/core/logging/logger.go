// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     logging
// Description: Structured key-value logging backed by zap
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Component name, attached as the logger name
	ServiceName string

	// Log level (debug, info, warn, error)
	Level string

	// Output format: "json" or "text" (default: text)
	Format string

	// Output writer (default: os.Stderr)
	Output io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "text",
	}
}

// Logger is a key-value logger with the Debug/Info/Warn/Error surface used
// throughout hatsuon
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	name  string
}

// NewLogger creates a logger from the given configuration
func NewLogger(cfg LoggerConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level).zapLevel())
	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if cfg.ServiceName != "" {
		zl = zl.Named(cfg.ServiceName)
	}

	return &Logger{sugar: zl.Sugar(), level: level, name: cfg.ServiceName}
}

// New creates a logger with default configuration
func New(name string) *Logger {
	return NewLogger(DefaultLoggerConfig(name))
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar(), level: zap.NewAtomicLevel(), name: "nop"}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// WithLevel returns a new logger with the specified level
func (l *Logger) WithLevel(level Level) *Logger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())
	desugared := l.sugar.Desugar().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &levelCore{Core: c, level: atomic}
	}))
	return &Logger{sugar: desugared.Sugar(), level: atomic, name: l.name}
}

// Enabled reports whether messages at the given level are written
func (l *Logger) Enabled(level Level) bool {
	return l.level.Enabled(level.zapLevel())
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...), level: l.level, name: l.name}
}

// Named returns a child logger with name appended to the current one
func (l *Logger) Named(name string) *Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return &Logger{sugar: l.sugar.Named(name), level: l.level, name: full}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// levelCore narrows an existing core to a stricter or looser level
type levelCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

// parseLevel converts a string level to Level
func parseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseLevel converts a configuration string to a Level, defaulting to info
func ParseLevel(level string) Level {
	return parseLevel(level)
}
