package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging seam used throughout the stack.
// Transports log hex dumps of raw traffic at Debug, lifecycle at Info.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// zapLogger adapts a zap sugared logger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// New creates a console logger at the given level.
func New(level zapcore.Level) Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Development config only fails on invalid output paths
		return NewNop()
	}
	return &zapLogger{s: l.Sugar()}
}

// NewNop creates a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

// Debug logs a debug message
func (z *zapLogger) Debug(format string, args ...interface{}) {
	z.s.Debugf(format, args...)
}

// Info logs an info message
func (z *zapLogger) Info(format string, args ...interface{}) {
	z.s.Infof(format, args...)
}

// Warn logs a warning message
func (z *zapLogger) Warn(format string, args ...interface{}) {
	z.s.Warnf(format, args...)
}

// Error logs an error message
func (z *zapLogger) Error(format string, args ...interface{}) {
	z.s.Errorf(format, args...)
}

// Global default logger
var defaultLogger = New(zapcore.InfoLevel)

// SetDefault sets the default logger
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// GetDefault returns the default logger
func GetDefault() Logger {
	return defaultLogger
}
