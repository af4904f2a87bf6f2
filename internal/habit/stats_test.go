package habit

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/models"
)

// memCorpus is an in-memory vault keyed by slash-separated path.
type memCorpus struct {
	files   map[string]string
	broken  map[string]bool
	listErr error
}

func (m *memCorpus) List(dir string) ([]models.Document, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Document
	for p := range m.files {
		if dir == "" || strings.HasPrefix(p, dir+"/") {
			out = append(out, models.Document{Path: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memCorpus) Read(path string) ([]byte, error) {
	if m.broken[path] {
		return nil, errors.New("io error")
	}
	s, ok := m.files[path]
	if !ok {
		return nil, errors.New("missing")
	}
	return []byte(s), nil
}

func walkOptions(t *testing.T) Options {
	t.Helper()
	opts, ok := ResolveOptions(BlockOptions{Title: "Walk"}, DefaultSettings())
	if !ok {
		t.Fatal("resolve walk")
	}
	return opts
}

func at(day, hh, mm int) time.Time {
	return time.Date(2024, time.June, day, hh, mm, 0, 0, time.UTC)
}

func TestCollectScenario(t *testing.T) {
	corpus := &memCorpus{files: map[string]string{
		"daily/2024-06-14.md": "- #habit_walk 18:00\n",
		"daily/2024-06-15.md": "- #habit_walk 07:00\n- #habit_walk 19:00\n",
	}}
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return at(15, 20, 0) }))
	stats := c.Collect(walkOptions(t))

	if stats.CountsByISO["2024-06-14"] != 1 || stats.CountsByISO["2024-06-15"] != 2 {
		t.Errorf("counts = %v", stats.CountsByISO)
	}
	if len(stats.HasByISO) != 2 {
		t.Errorf("has = %v", stats.HasByISO)
	}
	for iso := range stats.CountsByISO {
		if _, ok := stats.HasByISO[iso]; !ok {
			t.Errorf("has set missing %s", iso)
		}
	}
	if !stats.LastTs.Equal(at(15, 19, 0)) {
		t.Errorf("lastTs = %v", stats.LastTs)
	}
	if stats.Streak != 2 {
		t.Errorf("streak = %d, want 2", stats.Streak)
	}
	if stats.AllowedGapHours != 48 || stats.AllowedGap != 48*time.Hour || stats.WarningWindowHours != 24 {
		t.Errorf("thresholds = %d %v %d", stats.AllowedGapHours, stats.AllowedGap, stats.WarningWindowHours)
	}
}

func TestCollectZeroEntries(t *testing.T) {
	c := NewCollector(&memCorpus{files: map[string]string{}}, WithLocation(time.UTC))
	stats := c.Collect(walkOptions(t))
	if stats.Streak != 0 || stats.HasLast() || stats.DoneOn(time.Now()) {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCollectFolderScoping(t *testing.T) {
	corpus := &memCorpus{files: map[string]string{
		"daily/2024-06-15.md":     "#habit_walk 07:00",
		"archive/2024-06-14.md":   "#habit_walk 07:00",
		"dailyish/2024-06-13.md":  "#habit_walk 07:00",
		"2024-06-12.md":           "#habit_walk 07:00",
		"daily/notes.md":          "#habit_walk 07:00",
		"daily/2024-06-11.md":     "#habit_read 07:00 #habit_walking 08:00",
		"daily/sub/2024-06-10.md": "#habit_walk 07:00",
	}}
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return at(15, 20, 0) }))
	stats := c.Collect(walkOptions(t))
	if len(stats.CountsByISO) != 1 || stats.CountsByISO["2024-06-15"] != 1 {
		t.Errorf("counts = %v", stats.CountsByISO)
	}
}

func TestCollectWithoutFolderUsesBaseName(t *testing.T) {
	corpus := &memCorpus{files: map[string]string{
		"journal/2024-06-15.md": "#habit_walk 07:00",
		"2024-06-14.md":         "#habit_walk",
	}}
	opts := walkOptions(t)
	opts.DailyFolder = ""
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return at(15, 20, 0) }))
	stats := c.Collect(opts)
	if stats.CountsByISO["2024-06-15"] != 1 || stats.CountsByISO["2024-06-14"] != 1 {
		t.Errorf("counts = %v", stats.CountsByISO)
	}
	if !stats.LastTsByISO["2024-06-14"].Equal(at(14, 0, 0)) {
		t.Errorf("missing time should default to midnight, got %v", stats.LastTsByISO["2024-06-14"])
	}
}

func TestCollectNestedFormat(t *testing.T) {
	corpus := &memCorpus{files: map[string]string{
		"daily/2024/June/15.md": "#habit_walk 07:00",
	}}
	opts := walkOptions(t)
	opts.DailyNoteFormat = "YYYY/MMMM/DD"
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return at(15, 20, 0) }))
	if got := c.Collect(opts).CountsByISO["2024-06-15"]; got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestCollectSkipsBadInput(t *testing.T) {
	corpus := &memCorpus{
		files: map[string]string{
			"daily/2024-06-13.md": "#habit_walk 07:00",
			"daily/2024-06-14.md": "#habit_walk 25:00\n#HABIT_WALK 6:45\n#habit_walk 07:5",
			"daily/2024-06-15.md": "#habit_walk 07:00",
		},
		broken: map[string]bool{"daily/2024-06-13.md": true},
	}
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return at(15, 20, 0) }))
	stats := c.Collect(walkOptions(t))
	if _, ok := stats.CountsByISO["2024-06-13"]; ok {
		t.Error("unreadable document should be skipped")
	}
	// 25:00 is invalid and skipped; "07:5" does not match as a time so it counts as midnight.
	if got := stats.CountsByISO["2024-06-14"]; got != 2 {
		t.Errorf("2024-06-14 count = %d, want 2", got)
	}
	if !stats.LastTsByISO["2024-06-14"].Equal(at(14, 6, 45)) {
		t.Errorf("latest on 14th = %v", stats.LastTsByISO["2024-06-14"])
	}
}

func TestCollectListError(t *testing.T) {
	c := NewCollector(&memCorpus{listErr: errors.New("boom")}, WithLocation(time.UTC))
	if stats := c.Collect(walkOptions(t)); stats.HasLast() || len(stats.CountsByISO) != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestComputeStreak(t *testing.T) {
	gap := 48 * time.Hour
	now := at(20, 12, 0)
	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"empty", nil, 0},
		{"single recent", []time.Time{at(20, 8, 0)}, 1},
		{"broken by absence", []time.Time{at(17, 8, 0)}, 0},
		{"consecutive", []time.Time{at(17, 8, 0), at(18, 8, 0), at(19, 8, 0), at(20, 8, 0)}, 4},
		{"skip within grace", []time.Time{at(16, 20, 0), at(18, 8, 0), at(20, 8, 0)}, 3},
		{"gap truncates", []time.Time{at(10, 8, 0), at(11, 8, 0), at(18, 8, 0), at(19, 8, 0)}, 2},
		{"boundary equal is within", []time.Time{at(18, 12, 0)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStreak(tt.days, gap, now); got != tt.want {
				t.Errorf("ComputeStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreakMonotonicity(t *testing.T) {
	gap := 30 * time.Hour
	var days []time.Time
	for i := 0; i < 10; i++ {
		days = append(days, time.Date(2024, 1, 1+i, 9, 0, 0, 0, time.UTC))
	}
	now := days[len(days)-1].Add(time.Hour)
	if got := ComputeStreak(days, gap, now); got != len(days) {
		t.Fatalf("streak = %d, want %d", got, len(days))
	}
	for cut := 1; cut < len(days); cut++ {
		shifted := make([]time.Time, len(days))
		for i, d := range days {
			if i < cut {
				shifted[i] = d.Add(-72 * time.Hour)
			} else {
				shifted[i] = d
			}
		}
		if got := ComputeStreak(shifted, gap, now); got != len(days)-cut {
			t.Errorf("gap before index %d: streak = %d, want %d", cut, got, len(days)-cut)
		}
	}
}

func TestIncrementalMatchesRescan(t *testing.T) {
	corpus := &memCorpus{files: map[string]string{
		"daily/2024-06-14.md": "- #habit_walk 18:00\n",
	}}
	now := at(15, 7, 0)
	c := NewCollector(corpus, WithLocation(time.UTC), WithClock(func() time.Time { return now }))
	opts := walkOptions(t)

	local := c.Collect(opts)
	local.Record(now)
	local.Recompute(now)

	corpus.files["daily/2024-06-15.md"] = "- #habit_walk 07:00\n"
	rescanned := c.Collect(opts)

	if local.Streak != rescanned.Streak || !local.LastTs.Equal(rescanned.LastTs) {
		t.Errorf("incremental %d/%v, rescan %d/%v", local.Streak, local.LastTs, rescanned.Streak, rescanned.LastTs)
	}
	if len(local.CountsByISO) != len(rescanned.CountsByISO) {
		t.Errorf("counts differ: %v vs %v", local.CountsByISO, rescanned.CountsByISO)
	}
}

func TestStatsClone(t *testing.T) {
	s := NewStats(24, 24)
	s.Record(at(15, 7, 0))
	s.Recompute(at(15, 8, 0))
	c := s.Clone()
	c.Record(at(16, 7, 0))
	if len(s.CountsByISO) != 1 || len(s.HasByISO) != 1 || len(s.LastTsByISO) != 1 {
		t.Error("clone shares maps with the original")
	}
	if (*Stats)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hh, mm int
		ok     bool
	}{
		{"", 0, 0, true},
		{"07:30", 7, 30, true},
		{"7:05", 7, 5, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"12:5", 0, 0, false},
	}
	for _, tt := range tests {
		hh, mm, ok := ParseClock(tt.in)
		if ok != tt.ok || (ok && (hh != tt.hh || mm != tt.mm)) {
			t.Errorf("ParseClock(%q) = %d, %d, %v", tt.in, hh, mm, ok)
		}
	}
}
