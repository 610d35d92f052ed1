// README: zap-backed structured logger shared by every module.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ILogger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warning(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Named(namespace string) ILogger
}

type logger struct {
	zap *zap.Logger
}

func (l logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, fields...)
}

func (l logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, fields...)
}

func (l logger) Warning(msg string, fields ...Field) {
	l.zap.Warn(msg, fields...)
}

func (l logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, fields...)
}

func (l logger) Named(namespace string) ILogger {
	return logger{zap: l.zap.Named(namespace)}
}

// New builds a JSON logger writing to stdout. Unknown levels fall back to info.
func New(level, namespace string) ILogger {
	return logger{
		zap: newZapLogger(level, namespace),
	}
}

// Nop discards everything; used by tests and tools.
func Nop() ILogger {
	return logger{zap: zap.NewNop()}
}

// Sync flushes buffered entries of loggers created by New.
func Sync(l ILogger) {
	if zl, ok := l.(logger); ok {
		_ = zl.zap.Sync()
	}
}

func newZapLogger(level, namespace string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{
		"namespace": namespace,
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}
