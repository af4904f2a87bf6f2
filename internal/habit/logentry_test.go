package habit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/storage"
)

func tempVault(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestLogEntryCreatesNote(t *testing.T) {
	fs := tempVault(t)
	opts := walkOptions(t)
	now := time.Date(2024, time.June, 15, 7, 5, 42, 0, time.UTC)

	ts, path, err := LogEntry(fs, opts, now, nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	if path != "daily/2024-06-15.md" {
		t.Errorf("path = %q", path)
	}
	if !ts.Equal(time.Date(2024, time.June, 15, 7, 5, 0, 0, time.UTC)) {
		t.Errorf("ts = %v", ts)
	}
	data, err := fs.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "\n- #habit_walk 07:05\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLogEntryAppends(t *testing.T) {
	fs := tempVault(t)
	if err := fs.Write("daily/2024-06-15.md", []byte("# Saturday\n")); err != nil {
		t.Fatal(err)
	}
	opts := walkOptions(t)
	now := time.Date(2024, time.June, 15, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, _, err := LogEntry(fs, opts, now, nil); err != nil {
			t.Fatalf("LogEntry: %v", err)
		}
	}
	data, _ := fs.Read("daily/2024-06-15.md")
	if got := strings.Count(string(data), "- #habit_walk 19:00"); got != 2 {
		t.Errorf("expected two lines, content = %q", data)
	}
	if !strings.HasPrefix(string(data), "# Saturday\n") {
		t.Errorf("existing content lost: %q", data)
	}
}

func TestLogEntryTemplate(t *testing.T) {
	fs := tempVault(t)
	if err := fs.Write("templates/daily.md", []byte("# Daily\n\n## Log  \n\n\n")); err != nil {
		t.Fatal(err)
	}
	opts := walkOptions(t)
	opts.TemplatePath = "templates/daily.md"
	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	_, path, err := LogEntry(fs, opts, now, nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	data, _ := fs.Read(path)
	if string(data) != "# Daily\n\n## Log\n\n- #habit_walk 09:00\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLogEntryMissingTemplate(t *testing.T) {
	fs := tempVault(t)
	opts := walkOptions(t)
	opts.TemplatePath = "templates/nope.md"
	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	_, path, err := LogEntry(fs, opts, now, nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	data, _ := fs.Read(path)
	if string(data) != "\n- #habit_walk 09:00\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLogEntryCustomFormat(t *testing.T) {
	fs := tempVault(t)
	opts := walkOptions(t)
	opts.DailyFolder = "/journal/"
	opts.DailyNoteFormat = "YYYY/MMMM/DD"
	_, path, err := LogEntry(fs, opts, time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	if path != "journal/2024/June/05.md" {
		t.Errorf("path = %q", path)
	}
}

func TestLogEntryRoundTrip(t *testing.T) {
	fs := tempVault(t)
	opts := walkOptions(t)
	now := time.Date(2024, time.June, 15, 21, 47, 13, 0, time.UTC)
	c := NewCollector(fs, WithLocation(time.UTC), WithClock(func() time.Time { return now }))

	before := c.Collect(opts)
	ts, _, err := LogEntry(fs, opts, now, nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	after := c.Collect(opts)

	if got := after.CountsByISO["2024-06-15"] - before.CountsByISO["2024-06-15"]; got != 1 {
		t.Errorf("new occurrences = %d, want 1", got)
	}
	if !after.LastTs.Equal(ts) || FormatClock(after.LastTs) != "21:47" {
		t.Errorf("lastTs = %v, logged %v", after.LastTs, ts)
	}
	if !after.DoneOn(now) {
		t.Error("expected done today")
	}
}

func TestLogEntryRoundTripNestedFormatWithoutFolder(t *testing.T) {
	fs := tempVault(t)
	opts := walkOptions(t)
	opts.DailyFolder = ""
	opts.DailyNoteFormat = "YYYY/MMMM/DD"
	now := time.Date(2024, time.June, 15, 7, 30, 0, 0, time.UTC)
	c := NewCollector(fs, WithLocation(time.UTC), WithClock(func() time.Time { return now }))

	_, path, err := LogEntry(fs, opts, now, nil)
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}
	if path != "2024/June/15.md" {
		t.Errorf("path = %q", path)
	}
	stats := c.Collect(opts)
	if got := stats.CountsByISO["2024-06-15"]; got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if FormatClock(stats.LastTs) != "07:30" {
		t.Errorf("lastTs = %v", stats.LastTs)
	}
}

func TestCollectFallsBackToBaseName(t *testing.T) {
	fs := tempVault(t)
	if err := fs.Write("archive/2024-06-14.md", []byte("- #habit_walk 18:00\n")); err != nil {
		t.Fatal(err)
	}
	opts := walkOptions(t)
	opts.DailyFolder = ""
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	c := NewCollector(fs, WithLocation(time.UTC), WithClock(func() time.Time { return now }))

	if got := c.Collect(opts).CountsByISO["2024-06-14"]; got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Exists(string) (bool, error) { return false, nil }
func (f failingWriter) Create(string, []byte) error { return f.err }
func (f failingWriter) Append(string, []byte) error { return f.err }
func (f failingWriter) Read(string) ([]byte, error) { return nil, f.err }

func TestLogEntryFailure(t *testing.T) {
	boom := errors.New("disk full")
	ts, path, err := LogEntry(failingWriter{err: boom}, walkOptions(t), time.Now(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !ts.IsZero() || path == "" {
		t.Errorf("ts = %v path = %q", ts, path)
	}
}
