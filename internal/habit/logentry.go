package habit

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quipex/habit-button/internal/apperr"
)

// Writer is the mutation side of the vault used by LogEntry.
type Writer interface {
	Exists(path string) (bool, error)
	Create(path string, content []byte) error
	Append(path string, content []byte) error
	Read(path string) ([]byte, error)
}

// DailyNotePath returns the vault path of the daily note for t.
func DailyNotePath(opts Options, t time.Time) string {
	name := FormatDailyNoteName(t, opts.DailyNoteFormat) + ".md"
	if folder := TrimSlashes(opts.DailyFolder); folder != "" {
		return folder + "/" + name
	}
	return name
}

// EntryLine is the text appended for one occurrence.
func EntryLine(tag string, t time.Time) string {
	return "\n- " + tag + " " + FormatClock(t) + "\n"
}

// LogEntry appends one occurrence of the habit to today's daily note,
// creating the note from the template when it does not exist yet. The
// returned timestamp is truncated to the minute that was written.
func LogEntry(w Writer, opts Options, now time.Time, logger *slog.Logger) (time.Time, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ts := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	target := DailyNotePath(opts, ts)
	line := EntryLine(opts.HabitTag, ts)

	exists, err := w.Exists(target)
	if err != nil {
		return time.Time{}, target, fmt.Errorf("habit: log entry: %w", err)
	}
	if exists {
		if err := w.Append(target, []byte(line)); err != nil {
			return time.Time{}, target, fmt.Errorf("habit: log entry: %w", err)
		}
		return ts, target, nil
	}

	content := templatePrefix(w, opts.TemplatePath, logger) + line
	err = w.Create(target, []byte(content))
	if errors.Is(err, apperr.ErrAlreadyExists) {
		// Created concurrently; append like any existing note.
		err = w.Append(target, []byte(line))
	}
	if err != nil {
		return time.Time{}, target, fmt.Errorf("habit: log entry: %w", err)
	}
	return ts, target, nil
}

func templatePrefix(w Writer, templatePath string, logger *slog.Logger) string {
	templatePath = strings.TrimSpace(templatePath)
	if templatePath == "" {
		return ""
	}
	data, err := w.Read(templatePath)
	if err != nil {
		logger.Warn("habit: unable to read template",
			slog.String("path", templatePath),
			slog.String("error", err.Error()),
		)
		return ""
	}
	content := strings.TrimRight(string(data), " \t\r\n")
	if content == "" {
		return ""
	}
	return content + "\n"
}
