// Package logger wraps zap for structured diagnostics. Components receive an
// Interface; nothing in this module logs through process-wide state.
package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
)

// Interface is the logging hook accepted by replay components.
type Interface interface {
	Debug(message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	Info(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Error(err error, fields ...Field)
	ErrorContext(ctx context.Context, err error, fields ...Field)
	With(fields ...Field) Interface
	Sync() error
}

// Logger is a wrapper around zap.Logger.
type Logger struct {
	logger *zap.Logger
}

// Field holds a key-value pair to be written to the log.
type Field struct {
	Key   string
	Value any
}

// NewField returns a Field with the given key and value.
func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Level is the minimum severity written.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"

	messageKey = "message"
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a config string to a Level. Unknown strings are an error.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(s)); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l, nil
	default:
		return "", fmt.Errorf("unknown log level %q, must be one of: debug, info, warn, error", s)
	}
}

// Options configures NewLogger.
type Options struct {
	level       Level
	outputPaths []string
	development bool
}

// WithLevel sets the minimum level. Info is used when not set.
func WithLevel(level Level) Options {
	return Options{level: level}
}

// WithOutputPaths sets where logs go. "stdout" and "stderr" are special.
func WithOutputPaths(paths []string) Options {
	return Options{outputPaths: paths}
}

// WithDevelopment switches to zap's human-readable console encoder.
func WithDevelopment() Options {
	return Options{development: true}
}

// NewLogger creates a Logger from zap's production config adjusted by opts.
func NewLogger(opts ...Options) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	// CLI output goes to stdout; keep diagnostics off it by default.
	cfg.OutputPaths = []string{"stderr"}

	for _, opt := range opts {
		if opt.development {
			cfg.Encoding = "console"
			cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
	}
	for _, opt := range opts {
		if opt.level != "" {
			cfg.Level = zap.NewAtomicLevelAt(opt.level.zapLevel())
		}
		if opt.outputPaths != nil {
			cfg.OutputPaths = opt.outputPaths
		}
	}
	cfg.EncoderConfig.MessageKey = messageKey

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}
	return &Logger{logger: l}, nil
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{logger: l}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zap.NewNop()}
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

func (l *Logger) Debug(message string, fields ...Field) {
	l.logger.Debug(message, convertFields(fields)...)
}

// DebugContext logs at debug and appends the replay id found in ctx.
func (l *Logger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, appendReplayID(ctx, fields)...)
}

func (l *Logger) Info(message string, fields ...Field) {
	l.logger.Info(message, convertFields(fields)...)
}

func (l *Logger) Warn(message string, fields ...Field) {
	l.logger.Warn(message, convertFields(fields)...)
}

// Error logs err at error level. When err or anything it wraps carries a
// github.com/pkg/errors stack, that stack replaces zap's own.
func (l *Logger) Error(err error, fields ...Field) {
	ce := l.logger.Check(zapcore.ErrorLevel, err.Error())
	if ce == nil {
		return
	}
	var tracer errs.StackTracer
	if errors.As(err, &tracer) {
		if st := strings.TrimSpace(fmt.Sprintf("%+v", tracer.StackTrace())); st != "" {
			ce.Stack = st
		}
	}
	if code := errs.CodeOf(err); code != "" {
		fields = append(fields, NewField("code", string(code)))
	}
	ce.Write(convertFields(fields)...)
}

// ErrorContext logs err and appends the replay id found in ctx.
func (l *Logger) ErrorContext(ctx context.Context, err error, fields ...Field) {
	l.Error(err, appendReplayID(ctx, fields)...)
}

// With returns a child logger that always writes fields.
func (l *Logger) With(fields ...Field) Interface {
	return &Logger{logger: l.logger.With(convertFields(fields)...)}
}

func convertFields(fields []Field) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}

func appendReplayID(ctx context.Context, fields []Field) []Field {
	if id := ReplayID(ctx); id != "" {
		return append(fields, NewField("replay_id", id))
	}
	return fields
}
