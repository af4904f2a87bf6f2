// Package notify delivers transient user-facing notices.
package notify

import (
	"context"
	"log/slog"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Sink receives notices. Notify must not block.
type Sink interface {
	Notify(level Level, message string)
}

// Func adapts a function to a Sink.
type Func func(level Level, message string)

// Notify calls f.
func (f Func) Notify(level Level, message string) { f(level, message) }

// Discard drops every notice.
var Discard Sink = Func(func(Level, string) {})

type logSink struct{ logger *slog.Logger }

// Log returns a sink that writes notices to logger.
func Log(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return logSink{logger: logger}
}

func (s logSink) Notify(level Level, message string) {
	lvl := slog.LevelInfo
	if level == LevelError {
		lvl = slog.LevelError
	}
	s.logger.Log(context.Background(), lvl, "notice", slog.String("message", message))
}

type multi []Sink

// Multi fans a notice out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Notify(level Level, message string) {
	for _, s := range m {
		s.Notify(level, message)
	}
}
