// Package group aggregates habit records by group label. Group views read
// the registry first and scan their configured locations only when nothing
// is known yet (or when eagerScan is set), then follow the event bus.
package group

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/quipex/habit-button/internal/apperr"
	"github.com/quipex/habit-button/internal/events"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/parser"
	"github.com/quipex/habit-button/internal/registry"
)

// Messages shown by group views.
const (
	SummaryCaption     = "habits with an active streak"
	DuplicatesHeading  = "The same habit is declared more than once in this group:"
	EmptyPassiveNotice = "No habits in this group yet. Render one of its habits or set eagerScan: true."
	EmptyEagerNotice   = "No habits of this group were found in the configured locations."
)

// Duplicate lists every document declaring the same habit key.
type Duplicate struct {
	HabitKey string   `json:"habitKey"`
	Title    string   `json:"title"`
	Sources  []string `json:"sources"`
}

// View is the rendered state of a group block.
type View struct {
	Title      string      `json:"title"`
	Group      string      `json:"group"`
	Border     bool        `json:"border"`
	Error      string      `json:"error,omitempty"`
	Active     int         `json:"active"`
	Total      int         `json:"total"`
	Summary    string      `json:"summary,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	Empty      string      `json:"empty,omitempty"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
}

// Deps are the collaborators of an Aggregator.
type Deps struct {
	Corpus    habit.Corpus
	Registry  *registry.Registry
	Bus       *events.Bus
	Tracker   *Tracker
	Collector *habit.Collector
	Settings  habit.Settings
	Logger    *slog.Logger
}

// Aggregator renders group views and performs the lazy location scans.
type Aggregator struct {
	corpus    habit.Corpus
	registry  *registry.Registry
	bus       *events.Bus
	tracker   *Tracker
	collector *habit.Collector
	settings  habit.Settings
	logger    *slog.Logger
	flight    singleflight.Group
}

// New builds an Aggregator. Missing tracker, bus and collector are created.
func New(d Deps) *Aggregator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Tracker == nil {
		d.Tracker = NewTracker()
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger)
	}
	if d.Collector == nil {
		d.Collector = habit.NewCollector(d.Corpus, habit.WithLogger(d.Logger))
	}
	return &Aggregator{
		corpus:    d.Corpus,
		registry:  d.Registry,
		bus:       d.Bus,
		tracker:   d.Tracker,
		collector: d.Collector,
		settings:  d.Settings,
		logger:    d.Logger,
	}
}

// Tracker returns the staleness tracker shared with the widget layer.
func (a *Aggregator) Tracker() *Tracker { return a.tracker }

// Subscribe calls fn whenever group changes.
func (a *Aggregator) Subscribe(group string, fn func()) func() {
	return a.bus.OnGroup(group, fn)
}

// Render builds the view of the group block declared in sourcePath.
func (a *Aggregator) Render(source, sourcePath string) View {
	opts, err := ParseBlock(source)
	if err != nil {
		a.logger.Warn("group: failed to parse block",
			slog.String("source", sourcePath),
			slog.String("error", err.Error()),
		)
	}

	border := a.settings.DefaultBorder
	if opts.Border != nil {
		border = *opts.Border
	}

	groupRaw := strings.TrimSpace(opts.Group)
	if groupRaw == "" {
		return View{Border: border, Error: habit.CapitalizeFirst(apperr.ErrGroupMissing.Error())}
	}
	normalized := habit.NormalizeGroup(groupRaw)

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = habit.CapitalizeFirst(groupRaw)
	}
	view := View{Title: title, Group: normalized, Border: border}

	records := a.registry.GetByGroup(normalized)
	if opts.EagerScan || len(records) == 0 {
		if locations := Locations(opts, sourcePath); len(locations) > 0 {
			a.scanLocations(groupRaw, normalized, locations, opts.EagerScan)
			records = a.registry.GetByGroup(normalized)
		}
	}

	if dups := a.Duplicates(normalized); len(dups) > 0 {
		view.Duplicates = dups
		return view
	}

	if len(records) == 0 {
		if opts.EagerScan {
			view.Empty = EmptyEagerNotice
		} else {
			view.Empty = EmptyPassiveNotice
		}
		return view
	}

	for _, rec := range records {
		if rec.Stats != nil && rec.Stats.Streak > 0 {
			view.Active++
		}
	}
	view.Total = len(records)
	view.Summary = fmt.Sprintf("%d/%d", view.Active, view.Total)
	view.Caption = SummaryCaption
	return view
}

// Duplicates returns the habit keys declared by more than one document
// within group.
func (a *Aggregator) Duplicates(group string) []Duplicate {
	target := habit.NormalizeGroup(group)
	var out []Duplicate
	for key, recs := range a.registry.GetDuplicates() {
		var sources []string
		title := key
		for _, rec := range recs {
			if habit.NormalizeGroup(rec.Group) != target {
				continue
			}
			if len(sources) == 0 && rec.Options.Title != "" {
				title = rec.Options.Title
			}
			sources = append(sources, rec.SourcePath)
		}
		if len(sources) > 1 {
			out = append(out, Duplicate{HabitKey: key, Title: title, Sources: sources})
		}
	}
	sortDuplicates(out)
	return out
}

// Forget drops every record declared by path, e.g. after the document was
// deleted, and notifies the affected groups.
func (a *Aggregator) Forget(path string) {
	a.tracker.MarkStale(path)
	removed := a.registry.PruneSourceRecords(path, "", nil)
	a.emitAll(groupsOf(removed))
}

// scanLocations scans the documents behind locations once per concurrent
// burst. Group events are emitted after the scan so listeners may render
// the same group again.
func (a *Aggregator) scanLocations(groupRaw, normalized string, locations []string, force bool) {
	key := normalized + "\x00" + strconv.FormatBool(force) + "\x00" + strings.Join(locations, "\x00")
	leader := false
	v, _, _ := a.flight.Do(key, func() (any, error) {
		leader = true
		return a.scan(groupRaw, normalized, locations, force), nil
	})
	if leader {
		a.emitAll(v.([]string))
	}
}

func (a *Aggregator) scan(groupRaw, normalized string, locations []string, force bool) []string {
	docs, err := a.corpus.List("")
	if err != nil {
		a.logger.Warn("group: list vault failed", slog.String("error", err.Error()))
		return nil
	}
	changed := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, loc := range locations {
		for _, path := range ResolveLocationPaths(loc, docs) {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			if !a.tracker.ShouldScan(path, normalized, force) {
				continue
			}
			for _, g := range a.scanFile(path, groupRaw, normalized) {
				changed[g] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(changed))
	for g := range changed {
		out = append(out, g)
	}
	return out
}

// scanFile upserts every habit block in path that belongs to the group and
// prunes the group's records the file no longer declares. It returns the
// groups whose records changed.
func (a *Aggregator) scanFile(path, groupRaw, normalized string) []string {
	changed, ok := a.upsertBlocks(path, groupRaw, func(opts habit.Options) bool {
		return habit.NormalizeGroup(opts.Group) == normalized
	})
	if ok {
		a.tracker.MarkFresh(path, normalized)
	}
	return changed
}

// Index registers every habit block of the vault whatever its group and
// drops records of blocks that no longer exist. Anonymous records are kept.
func (a *Aggregator) Index() error {
	docs, err := a.corpus.List("")
	if err != nil {
		return fmt.Errorf("group: index: %w", err)
	}
	var changed []string
	for _, d := range docs {
		recs, _ := a.upsertBlocks(d.Path, "", func(habit.Options) bool { return true })
		changed = append(changed, recs...)
	}
	a.emitAll(changed)
	return nil
}

// upsertBlocks upserts the habit blocks of path accepted by match and prunes
// the records of path under pruneGroup that were not seen. An empty
// pruneGroup prunes across all groups.
func (a *Aggregator) upsertBlocks(path, pruneGroup string, match func(habit.Options) bool) ([]string, bool) {
	content, err := a.corpus.Read(path)
	if err != nil {
		a.logger.Warn("group: read failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var changed []string
	keep := make(map[string]struct{})
	for _, block := range parser.ExtractBlocks(string(content), parser.HabitBlockLang) {
		raw, err := habit.ParseBlock(block)
		if err != nil {
			a.logger.Warn("group: skipping malformed habit block",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		opts, ok := habit.ResolveOptions(raw, a.settings)
		if !ok || !match(opts) {
			continue
		}
		keep[opts.HabitKey] = struct{}{}

		recGroup := opts.Group
		if recGroup == "" {
			recGroup = pruneGroup
		}
		updated, rec := a.registry.Upsert(registry.Input{
			HabitKey:   opts.HabitKey,
			Group:      recGroup,
			SourcePath: path,
			Options:    opts,
			Stats:      a.collector.Collect(opts),
		})
		if updated {
			changed = append(changed, rec.Group)
		}
	}

	removed := a.registry.PruneSourceRecords(path, pruneGroup, keep)
	changed = append(changed, groupsOf(removed)...)
	return changed, true
}

func (a *Aggregator) emitAll(groups []string) {
	seen := make(map[string]struct{})
	for _, g := range groups {
		n := habit.NormalizeGroup(g)
		if _, dup := seen[n]; dup || n == "" {
			continue
		}
		seen[n] = struct{}{}
		a.bus.EmitGroup(n)
	}
}

func groupsOf(recs []registry.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Group)
	}
	return out
}

func sortDuplicates(d []Duplicate) {
	sort.Slice(d, func(i, j int) bool { return d[i].HabitKey < d[j].HabitKey })
}
