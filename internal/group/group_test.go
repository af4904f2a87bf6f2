package group

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/events"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/models"
	"github.com/quipex/habit-button/internal/registry"
	"github.com/quipex/habit-button/internal/storage"
	"github.com/quipex/habit-button/internal/testutil"
)

var now = time.Date(2024, time.June, 15, 20, 0, 0, 0, time.UTC)

type fixture struct {
	store *storage.FS
	reg   *registry.Registry
	bus   *events.Bus
	agg   *Aggregator
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	_, store := testutil.TestVault(t)
	testutil.WriteFiles(t, store, files)
	reg := registry.New()
	bus := events.NewBus(nil)
	collector := habit.NewCollector(store, habit.WithLocation(time.UTC), habit.WithClock(testutil.FixedClock(now)))
	agg := New(Deps{
		Corpus:    store,
		Registry:  reg,
		Bus:       bus,
		Collector: collector,
		Settings:  habit.DefaultSettings(),
	})
	return &fixture{store: store, reg: reg, bus: bus, agg: agg}
}

const routines = "# Routines\n\n" +
	"```habit-button\ntitle: Walk\ngroup: Morning\n```\n\n" +
	"```habit-button\ntitle: Read\ngroup: morning\n```\n\n" +
	"```habit-button\ntitle: Stretch\ngroup: evening\n```\n"

func TestParseBlock(t *testing.T) {
	opts, err := ParseBlock("title: Mornings\ngroup: Morning\nhabitsLocations: habits/\neagerScan: true\nborder: false")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Title != "Mornings" || opts.Group != "Morning" || !opts.EagerScan || opts.Border == nil || *opts.Border {
		t.Errorf("opts = %+v", opts)
	}
	if len(opts.HabitsLocations) != 1 || opts.HabitsLocations[0] != "habits/" {
		t.Errorf("locations = %v", opts.HabitsLocations)
	}

	opts, _ = ParseBlock("group: g\nhabitsLocations:\n  - a\n  - '  '\n  - b.md\n  - 2024")
	if strings.Join(opts.HabitsLocations, ",") != "a,b.md,2024" {
		t.Errorf("list locations = %v", opts.HabitsLocations)
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	if !tr.ShouldScan("a.md", "g", false) {
		t.Error("unknown path should be scanned")
	}
	tr.MarkFresh("a.md", "g")
	if tr.ShouldScan("a.md", "g", false) {
		t.Error("fresh path rescanned")
	}
	if !tr.ShouldScan("a.md", "h", false) {
		t.Error("other group should be scanned")
	}
	if !tr.ShouldScan("a.md", "g", true) {
		t.Error("force should scan")
	}
	tr.MarkStale("a.md")
	if !tr.ShouldScan("a.md", "g", false) {
		t.Error("stale path not rescanned")
	}
	tr.MarkFresh("a.md", "g")
	tr.Clear()
	if !tr.ShouldScan("a.md", "g", false) {
		t.Error("clear should reset")
	}
}

func TestLocations(t *testing.T) {
	got := Locations(BlockOptions{HabitsLocations: []string{"/habits/", "habits", " notes/a.md "}}, "x.md")
	if strings.Join(got, ",") != "habits,notes/a.md" {
		t.Errorf("Locations = %v", got)
	}
	if got := Locations(BlockOptions{}, "notes/x.md"); len(got) != 1 || got[0] != "notes/x.md" {
		t.Errorf("fallback = %v", got)
	}
	if got := Locations(BlockOptions{}, registry.UnknownSource+"/abc"); len(got) != 0 {
		t.Errorf("anonymous source should not be scanned: %v", got)
	}
}

func TestResolveLocationPaths(t *testing.T) {
	docs := []models.Document{
		{Path: "habits/a.md"},
		{Path: "habits/b.md"},
		{Path: "habits/deep/c.md"},
		{Path: "notes/routine.md"},
		{Path: "notes/plan.v2.md"},
		{Path: "notes/plan.v1.md"},
	}
	tests := []struct {
		loc  string
		want string
	}{
		{"habits", "habits/a.md,habits/b.md"},
		{"/habits/deep/", "habits/deep/c.md"},
		{"notes/routine.md", "notes/routine.md"},
		{"notes/routine", "notes/routine.md"},
		{"notes/plan", "notes/plan.v1.md"},
		{"notes/plan.v3", ""},
		{"missing", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(ResolveLocationPaths(tt.loc, docs), ","); got != tt.want {
			t.Errorf("ResolveLocationPaths(%q) = %q, want %q", tt.loc, got, tt.want)
		}
	}
}

func TestRenderMissingGroup(t *testing.T) {
	f := newFixture(t, nil)
	v := f.agg.Render("title: x", "notes/a.md")
	if v.Error == "" {
		t.Error("expected inline error")
	}
	if v := f.agg.Render("group: [broken", "notes/a.md"); v.Error == "" {
		t.Error("malformed block should render the missing-group error")
	}
}

func TestRenderScansDeclaringDocument(t *testing.T) {
	f := newFixture(t, map[string]string{
		"notes/routines.md":   routines,
		"daily/2024-06-15.md": "- #habit_walk 07:00\n",
	})
	v := f.agg.Render("group: Morning", "notes/routines.md")
	if v.Error != "" || v.Title != "Morning" || v.Group != "morning" {
		t.Fatalf("view = %+v", v)
	}
	if v.Summary != "1/2" || v.Active != 1 || v.Total != 2 || v.Caption == "" {
		t.Errorf("summary = %+v", v)
	}
	if f.reg.Size() != 2 {
		t.Errorf("registry size = %d, want 2 (evening habit excluded)", f.reg.Size())
	}
}

func TestRenderEmptyStates(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/empty.md": "nothing here"})
	if v := f.agg.Render("group: g", "notes/empty.md"); v.Empty != EmptyPassiveNotice {
		t.Errorf("passive empty = %+v", v)
	}
	if v := f.agg.Render("group: g\neagerScan: true", "notes/empty.md"); v.Empty != EmptyEagerNotice {
		t.Errorf("eager empty = %+v", v)
	}
}

func TestRenderSkipsFreshPaths(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/routines.md": routines})
	f.agg.Render("group: morning", "notes/routines.md")

	// Remove the declarations behind the tracker's back; a fresh path is not rescanned.
	testutil.WriteFiles(t, f.store, map[string]string{"notes/routines.md": "empty"})
	f.reg.Clear()
	v := f.agg.Render("group: morning", "notes/routines.md")
	if v.Empty == "" {
		t.Errorf("expected empty view without rescan, got %+v", v)
	}

	f.agg.Tracker().MarkStale("notes/routines.md")
	testutil.WriteFiles(t, f.store, map[string]string{"notes/routines.md": routines})
	if v := f.agg.Render("group: morning", "notes/routines.md"); v.Total != 2 {
		t.Errorf("stale path should be rescanned: %+v", v)
	}
}

func TestRescanPrunesRemovedBlocks(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/routines.md": routines})
	var notified atomic.Int32
	f.agg.Subscribe("morning", func() { notified.Add(1) })

	f.agg.Render("group: morning\neagerScan: true", "notes/routines.md")
	if notified.Load() == 0 {
		t.Error("first scan should notify the group")
	}

	testutil.WriteFiles(t, f.store, map[string]string{
		"notes/routines.md": "```habit-button\ntitle: Walk\ngroup: Morning\n```\n",
	})
	before := notified.Load()
	v := f.agg.Render("group: morning\neagerScan: true", "notes/routines.md")
	if v.Total != 1 {
		t.Errorf("total = %d, want 1", v.Total)
	}
	if notified.Load() == before {
		t.Error("prune should notify the group")
	}

	before = notified.Load()
	f.agg.Render("group: morning\neagerScan: true", "notes/routines.md")
	if notified.Load() != before {
		t.Error("unchanged rescan should not notify")
	}
}

func TestRenderReportsDuplicates(t *testing.T) {
	walk := "```habit-button\ntitle: Walk\ngroup: Morning\n```\n"
	f := newFixture(t, map[string]string{
		"habits/a.md": walk,
		"habits/b.md": walk,
	})
	v := f.agg.Render("group: morning\nhabitsLocations: habits", "notes/dash.md")
	if len(v.Duplicates) != 1 {
		t.Fatalf("duplicates = %+v", v.Duplicates)
	}
	d := v.Duplicates[0]
	if d.HabitKey != "walk" || d.Title != "Walk" || strings.Join(d.Sources, ",") != "habits/a.md,habits/b.md" {
		t.Errorf("duplicate = %+v", d)
	}
	if v.Summary != "" {
		t.Error("duplicates replace the summary")
	}
}

func TestForget(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/routines.md": routines})
	f.agg.Render("group: morning", "notes/routines.md")
	var got atomic.Int32
	f.agg.Subscribe("morning", func() { got.Add(1) })

	f.agg.Forget("notes/routines.md")
	if f.reg.Size() != 0 {
		t.Errorf("size = %d", f.reg.Size())
	}
	if got.Load() != 1 {
		t.Errorf("events = %d, want 1", got.Load())
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t, map[string]string{
		"notes/routines.md": routines,
		"notes/solo.md":     "```habit-button\ntitle: Journal\n```\n",
	})
	var morning, evening atomic.Int32
	f.agg.Subscribe("morning", func() { morning.Add(1) })
	f.agg.Subscribe("evening", func() { evening.Add(1) })

	if err := f.agg.Index(); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if f.reg.Size() != 4 {
		t.Errorf("size = %d, want 4", f.reg.Size())
	}
	if morning.Load() != 1 || evening.Load() != 1 {
		t.Errorf("events = %d/%d, want one per group", morning.Load(), evening.Load())
	}

	testutil.WriteFiles(t, f.store, map[string]string{"notes/solo.md": "no habits here\n"})
	if err := f.agg.Index(); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if _, ok := f.reg.Get("journal", "notes/solo.md"); ok {
		t.Error("removed block should be pruned")
	}
	if f.reg.Size() != 3 {
		t.Errorf("size = %d, want 3", f.reg.Size())
	}
}

func TestListenerMayRenderSameGroup(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/routines.md": routines})
	var views []View
	f.agg.Subscribe("morning", func() {
		views = append(views, f.agg.Render("group: morning\neagerScan: true", "notes/routines.md"))
	})
	v := f.agg.Render("group: morning\neagerScan: true", "notes/routines.md")
	if v.Total != 2 || len(views) == 0 || views[len(views)-1].Total != 2 {
		t.Errorf("view = %+v, listener views = %+v", v, views)
	}
}

func TestConcurrentRenders(t *testing.T) {
	f := newFixture(t, map[string]string{"notes/routines.md": routines})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.agg.Render("group: morning\neagerScan: true", "notes/routines.md")
		}()
	}
	wg.Wait()
	if f.reg.Size() != 2 {
		t.Errorf("size = %d, want 2", f.reg.Size())
	}
}
