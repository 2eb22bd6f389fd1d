// Package telemetry provides structured, component-scoped logging for the
// debugger packages, backed by go.uber.org/zap.
package telemetry

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with the component/field chaining shape
// the rest of this module is written against.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a Logger at the given level, writing to the process's
// standard error in a console-friendly encoding.
func NewLogger(level zapcore.Level) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar()}
}

// Noop returns a Logger that discards everything. Packages default to this
// when no *Logger is supplied, mirroring the teacher's NullLogger.
func Noop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// WithComponent returns a derived logger tagging every entry with component.
func (l *Logger) WithComponent(component string) *Logger {
	if l == nil {
		return Noop().WithComponent(component)
	}
	return &Logger{sugar: l.sugar.With("component", component)}
}

// WithField returns a derived logger with one extra structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	if l == nil {
		return Noop().WithField(key, value)
	}
	return &Logger{sugar: l.sugar.With(key, value)}
}

func (l *Logger) sug() *zap.SugaredLogger {
	if l == nil {
		return Noop().sugar
	}
	return l.sugar
}

// Debug logs at debug level with printf-style formatting.
func (l *Logger) Debug(msg string, args ...any) { l.sug().Debugf(msg, args...) }

// Info logs at info level with printf-style formatting.
func (l *Logger) Info(msg string, args ...any) { l.sug().Infof(msg, args...) }

// Warn logs at warn level with printf-style formatting.
func (l *Logger) Warn(msg string, args ...any) { l.sug().Warnf(msg, args...) }

// Error logs at error level with printf-style formatting.
func (l *Logger) Error(msg string, args ...any) { l.sug().Errorf(msg, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sugar.Sync()
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
	defaultLoggerMu   sync.Mutex
)

// Default returns the process-wide logger, created lazily at info level.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLoggerMu.Lock()
		defer defaultLoggerMu.Unlock()
		if defaultLogger == nil {
			defaultLogger = NewLogger(zapcore.InfoLevel)
		}
	})
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger. Should be called early in
// process startup, before any package calls Default().
func SetDefault(l *Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}
