// Package logger builds the process logger and a per-load diagnostics
// buffer.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, encoder and sink.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File string
}

// New builds a zap logger. The returned closer flushes and, for file
// sinks, closes the rotating writer.
func New(opts Options) (*zap.Logger, func() error) {
	level := ParseLevel(opts.Level)

	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64, // MB
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		sink = zapcore.AddSync(rotator)
	}

	l := zap.New(zapcore.NewCore(enc, sink, level), zap.AddCaller())
	closer := func() error {
		_ = l.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return l, closer
}

// ParseLevel maps a name onto a zap level; unknown names mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Logf adapts a zap logger to the printf-style hook the packages accept.
// Lines are written at info level.
func Logf(l *zap.Logger) func(string, ...any) {
	s := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return func(format string, args ...any) { s.Infof(format, args...) }
}

// Errorf is Logf at error level, for failures an operator has to see.
func Errorf(l *zap.Logger) func(string, ...any) {
	s := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return func(format string, args ...any) { s.Errorf(format, args...) }
}
