package logging

import (
	"fmt"
	"strings"
)

// Logger is the structured logger used across writermesh. Messages are
// dotted event names; args alternate keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogLevel is a backend independent severity.
type LogLevel int

// Levels in increasing severity.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = map[LogLevel]string{
	LogLevelDebug: "debug",
	LogLevelInfo:  "info",
	LogLevelWarn:  "warn",
	LogLevelError: "error",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLogLevel reads a case-insensitive level name. Empty means info.
func ParseLogLevel(s string) (LogLevel, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return LogLevelInfo, nil
	case "warning":
		return LogLevelWarn, nil
	default:
		for level, n := range levelNames {
			if n == name {
				return level, nil
			}
		}

		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// With returns a Logger that prepends kv to the args of every entry.
func With(l Logger, kv ...any) Logger {
	if len(kv) == 0 {
		return l
	}

	if w, ok := l.(*withLogger); ok {
		return &withLogger{next: w.next, kv: append(append([]any(nil), w.kv...), kv...)}
	}

	return &withLogger{next: l, kv: kv}
}

type withLogger struct {
	next Logger
	kv   []any
}

func (w *withLogger) args(args []any) []any {
	return append(append(make([]any, 0, len(w.kv)+len(args)), w.kv...), args...)
}

func (w *withLogger) Debug(msg string, args ...any) { w.next.Debug(msg, w.args(args)...) }
func (w *withLogger) Info(msg string, args ...any)  { w.next.Info(msg, w.args(args)...) }
func (w *withLogger) Warn(msg string, args ...any)  { w.next.Warn(msg, w.args(args)...) }
func (w *withLogger) Error(msg string, args ...any) { w.next.Error(msg, w.args(args)...) }

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}
