// Package logger provides a simple, clean logging interface.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the logging interface.
type Logger interface {
	// Context-aware variants
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging.
type Field = zap.Field

// Field constructors.
func String(key, val string) Field                 { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Any(key string, val interface{}) Field        { return zap.Any(key, val) }
func Error(err error) Field                        { return zap.Error(err) }

type ctxKey struct{}

// WithRequestID returns a context carrying a request id that every log line
// written with that context will include.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID extracts the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// zapLogger implements Logger on top of zap.
type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.z.Info(msg, withContext(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.z.Error(msg, withContext(ctx, fields)...)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, withContext(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, withContext(ctx, fields)...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.z.Fatal(msg, withContext(ctx, fields)...)
}

func withContext(ctx context.Context, fields []Field) []Field {
	if id := RequestID(ctx); id != "" {
		return append(fields, String("request_id", id))
	}
	return fields
}

var global Logger
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Init initializes the global logger writing console-encoded lines to stdout.
func Init() error {
	return InitWriter(os.Stdout)
}

// InitWriter initializes the global logger writing to w. Tests use it to
// capture or discard output.
func InitWriter(w io.Writer) error {
	if w == nil {
		return fmt.Errorf("logger writer is nil")
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	global = &zapLogger{z: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
	return nil
}

// Get returns the global logger.
func Get() Logger {
	if global == nil {
		// The logger should be explicitly initialized by the application
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

// Sync flushes buffered log entries.
func Sync() error {
	if l, ok := global.(*zapLogger); ok {
		// stdout does not support fsync on every platform
		if err := l.z.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
			return err
		}
	}
	return nil
}

// SetLevel updates the current logging level for the global logger.
func SetLevel(l zapcore.Level) { level.SetLevel(l) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(lvl string) error {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		SetLevel(zapcore.DebugLevel)
	case "", "info":
		SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		SetLevel(zapcore.WarnLevel)
	case "error":
		SetLevel(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %s", lvl)
	}
	return nil
}
