package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

type Logger struct {
	base *slog.Logger
}

type loggerKey struct{}

var fallbackLogger = NewLogger("info")

func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("timestamp", attr.Value.Time().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			case slog.MessageKey:
				attr.Key = "message"
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	})

	return &Logger{base: slog.New(handler)}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(slog.LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(slog.LevelError, message, fields)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{base: l.base.With(toArgs(fields)...)}
}

// Slog exposes the underlying logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger {
	return l.base
}

func (l *Logger) write(level slog.Level, message string, fields map[string]any) {
	l.base.Log(context.Background(), level, message, toArgs(fields)...)
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the request-scoped logger, or a stdout logger when none
// was attached.
func LoggerFrom(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return fallbackLogger
}

func toArgs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, slog.Any(k, fields[k]))
	}
	return args
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
