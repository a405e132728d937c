// Package logger provides process-wide structured logging with optional
// component tags and fields.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog levels so callers need not import zerolog.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, "console", InfoLevel)
)

func newLogger(w io.Writer, format string, level Level) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure replaces the global logger. format is "json" or "console".
func Configure(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(os.Stderr, format, ParseLevel(level))
}

// SetOutput redirects logs to w in JSON format. Used by tests.
func SetOutput(w io.Writer, level Level) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, "json", level)
}

// ParseLevel maps a level name to a Level; unknown names mean info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]any) {
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func Debug(msg string) { l := current(); emit(l.Debug(), "", msg, nil) }
func Info(msg string)  { l := current(); emit(l.Info(), "", msg, nil) }
func Warn(msg string)  { l := current(); emit(l.Warn(), "", msg, nil) }
func Error(msg string) { l := current(); emit(l.Error(), "", msg, nil) }

// DebugCF logs at debug level with a component tag and fields.
func DebugCF(component, msg string, fields map[string]any) {
	l := current()
	emit(l.Debug(), component, msg, fields)
}

// InfoCF logs at info level with a component tag and fields.
func InfoCF(component, msg string, fields map[string]any) {
	l := current()
	emit(l.Info(), component, msg, fields)
}

// WarnCF logs at warn level with a component tag and fields.
func WarnCF(component, msg string, fields map[string]any) {
	l := current()
	emit(l.Warn(), component, msg, fields)
}

// ErrorCF logs at error level with a component tag and fields.
func ErrorCF(component, msg string, fields map[string]any) {
	l := current()
	emit(l.Error(), component, msg, fields)
}
