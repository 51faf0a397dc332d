package logging

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured context for a log entry.
type Fields map[string]interface{}

// Logger is a service-scoped structured logger.
type Logger struct {
	z       *zap.Logger
	service string
}

// NewLogger builds a JSON logger for the named service.
// Development mode switches to the console encoder with stack traces on warnings.
func NewLogger(service, level string, development bool) (*Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{
		z:       z.With(zap.String("service", service)),
		service: service,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop(), service: "nop"}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger, service string) *Logger {
	return &Logger{z: z.With(zap.String("service", service)), service: service}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Named(component), service: l.service}
}

// With returns a child logger that always includes fields.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{z: l.z.With(toZap(fields)...), service: l.service}
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	l.z.Debug(msg, toZap(fields...)...)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.z.Info(msg, toZap(fields...)...)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	l.z.Warn(msg, toZap(fields...)...)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	l.z.Error(msg, toZap(fields...)...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.z.Fatal(msg, toZap(fields...)...)
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}

func toZap(fields ...Fields) []zap.Field {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	if n == 0 {
		return nil
	}

	out := make([]zap.Field, 0, n)
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, zap.Any(k, f[k]))
		}
	}
	return out
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
