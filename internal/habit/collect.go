package habit

import (
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/quipex/habit-button/internal/models"
	"github.com/quipex/habit-button/internal/parser"
)

// Corpus is the read side of the vault the collector scans.
type Corpus interface {
	List(dir string) ([]models.Document, error)
	Read(path string) ([]byte, error)
}

// Collector builds Stats snapshots by scanning dated documents.
type Collector struct {
	corpus Corpus
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLocation sets the zone occurrence times are interpreted in.
func WithLocation(loc *time.Location) CollectorOption {
	return func(c *Collector) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock overrides the time source used for streak evaluation.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for skipped documents.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollector returns a collector over corpus.
func NewCollector(corpus Corpus, opts ...CollectorOption) *Collector {
	c := &Collector{
		corpus: corpus,
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Location returns the zone occurrence times are interpreted in.
func (c *Collector) Location() *time.Location { return c.loc }

// Now returns the current time in the collector's zone.
func (c *Collector) Now() time.Time { return c.now().In(c.loc) }

// Thresholds returns the grace and warning hours for opts. Unresolved values
// (zero grace) fall back to defaults.
func Thresholds(opts Options, defaults Settings) (grace, warning int) {
	grace = opts.GracePeriodHours
	warning = opts.WarningWindowHours
	if grace <= 0 {
		grace = ClampPositive(float64(defaults.GracePeriodHours), DefaultSettings().GracePeriodHours, 1)
		warning = ClampPositive(float64(defaults.WarningWindowHours), DefaultSettings().WarningWindowHours, 0)
	}
	return grace, warning
}

// Collect scans the configured folder for occurrences of opts.HabitTag.
// Unreadable documents and undated names are skipped.
func (c *Collector) Collect(opts Options) *Stats {
	grace, warning := Thresholds(opts, DefaultSettings())
	stats := NewStats(grace, warning)

	folder := TrimSlashes(opts.DailyFolder)
	docs, err := c.corpus.List(folder)
	if err != nil {
		c.logger.Warn("habit: list corpus failed",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
		stats.Recompute(c.Now())
		return stats
	}

	prefix := NormalizeTagPrefix(opts.TagPrefix)
	for _, doc := range docs {
		day, ok := c.documentDay(doc, folder, opts.DailyNoteFormat)
		if !ok {
			continue
		}
		content, err := c.corpus.Read(doc.Path)
		if err != nil {
			c.logger.Debug("habit: read failed, treating as empty",
				slog.String("path", doc.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, occ := range parser.Occurrences(string(content), prefix) {
			if occ.Key != opts.HabitKey {
				continue
			}
			hh, mm, ok := ParseClock(occ.Time)
			if !ok {
				continue
			}
			stats.Record(day.At(hh, mm, c.loc))
		}
	}

	stats.Recompute(c.Now())
	return stats
}

// documentDay derives the calendar date from a document path. With a folder
// the path relative to it is matched (so nested formats work); without one
// the whole vault path is tried first, then the base name.
func (c *Collector) documentDay(doc models.Document, folder, format string) (Day, bool) {
	if !strings.HasSuffix(strings.ToLower(doc.Path), ".md") {
		return Day{}, false
	}
	name := doc.PathWithoutExt()
	if folder != "" {
		rel, ok := strings.CutPrefix(name, folder+"/")
		if !ok {
			return Day{}, false
		}
		name = rel
	}
	day, ok := ParseDailyNoteName(name, format)
	if !ok && folder == "" {
		day, ok = ParseDailyNoteName(path.Base(name), format)
	}
	if !ok {
		c.logger.Debug("habit: skipping undated document", slog.String("path", doc.Path))
	}
	return day, ok
}

// ParseClock parses an HH:MM occurrence time. An empty string is midnight.
func ParseClock(s string) (hh, mm int, ok bool) {
	if s == "" {
		return 0, 0, true
	}
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, false
	}
	mm, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 || mm < 0 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}

// FormatClock renders t as zero-padded HH:MM.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
