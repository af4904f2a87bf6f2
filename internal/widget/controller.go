// Package widget mounts habit blocks, keeps each mounted widget's local
// stats snapshot and turns clicks into log entries.
package widget

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/quipex/habit-button/internal/apperr"
	"github.com/quipex/habit-button/internal/events"
	"github.com/quipex/habit-button/internal/group"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/notify"
	"github.com/quipex/habit-button/internal/registry"
)

// ErrorNotice is shown when a log entry could not be written.
const ErrorNotice = "Could not add the habit entry, see the log for details"

// Widget lifecycle event kinds.
const (
	EventMounted   = "mounted"
	EventLogged    = "logged"
	EventUnmounted = "unmounted"
)

// Publisher receives widget lifecycle events, e.g. for SSE clients.
type Publisher interface {
	PublishHabitEvent(kind, habitKey, sourcePath string)
}

type nopPublisher struct{}

func (nopPublisher) PublishHabitEvent(string, string, string) {}

// Vault is the document access a controller needs.
type Vault interface {
	habit.Corpus
	habit.Writer
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Vault     Vault
	Registry  *registry.Registry
	Bus       *events.Bus
	Tracker   *group.Tracker
	Collector *habit.Collector
	Settings  habit.Settings
	Notifier  notify.Sink
	Publisher Publisher
	Logger    *slog.Logger
}

type instance struct {
	mu         sync.Mutex
	id         string
	sourcePath string
	opts       habit.Options
	stats      *habit.Stats
}

// Controller owns the mounted widgets. It is safe for concurrent use.
type Controller struct {
	vault     Vault
	registry  *registry.Registry
	bus       *events.Bus
	tracker   *group.Tracker
	collector *habit.Collector
	settings  habit.Settings
	notifier  notify.Sink
	publisher Publisher
	logger    *slog.Logger

	mu      sync.RWMutex
	widgets map[string]*instance
}

// NewController builds a Controller. Missing optional collaborators get
// defaults.
func NewController(d Deps) *Controller {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Log(d.Logger)
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger)
	}
	if d.Tracker == nil {
		d.Tracker = group.NewTracker()
	}
	if d.Collector == nil {
		d.Collector = habit.NewCollector(d.Vault, habit.WithLogger(d.Logger))
	}
	return &Controller{
		vault:     d.Vault,
		registry:  d.Registry,
		bus:       d.Bus,
		tracker:   d.Tracker,
		collector: d.Collector,
		settings:  d.Settings,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		logger:    d.Logger,
		widgets:   make(map[string]*instance),
	}
}

// Mount resolves a habit block, scans its stats and registers it. A block
// without a usable title yields a view carrying an inline error and is not
// mounted.
func (c *Controller) Mount(source, sourcePath string) View {
	raw, err := habit.ParseBlock(source)
	if err != nil {
		c.logger.Warn("widget: failed to parse block",
			slog.String("source", sourcePath),
			slog.String("error", err.Error()),
		)
	}
	opts, ok := habit.ResolveOptions(raw, c.settings)
	if !ok {
		return View{Border: c.settings.DefaultBorder, Error: habit.CapitalizeFirst(apperr.ErrNoTitle.Error())}
	}

	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		sourcePath = registry.UnknownSource + "/" + uuid.NewString()
	}

	inst := &instance{
		id:         uuid.NewString(),
		sourcePath: sourcePath,
		opts:       opts,
		stats:      c.collector.Collect(opts),
	}

	changed, rec := c.registry.Upsert(registry.Input{
		HabitKey:   opts.HabitKey,
		Group:      opts.Group,
		SourcePath: sourcePath,
		Options:    opts,
		Stats:      inst.stats,
	})
	if changed {
		c.bus.EmitGroup(rec.Group)
	}

	c.mu.Lock()
	c.widgets[inst.id] = inst
	c.mu.Unlock()

	c.logger.Debug("widget: mounted",
		slog.String("id", inst.id),
		slog.String("habit", opts.HabitKey),
		slog.String("source", sourcePath),
	)
	c.publisher.PublishHabitEvent(EventMounted, opts.HabitKey, sourcePath)
	return c.render(inst)
}

// Click logs one entry for widget id and applies it to the widget's local
// snapshot without rescanning. On failure the snapshot is left untouched.
func (c *Controller) Click(id string) (View, error) {
	inst, err := c.get(id)
	if err != nil {
		return View{}, err
	}

	inst.mu.Lock()
	ts, path, err := habit.LogEntry(c.vault, inst.opts, c.collector.Now(), c.logger)
	if err != nil {
		inst.mu.Unlock()
		c.logger.Error("widget: append failed",
			slog.String("id", id),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		c.notifier.Notify(notify.LevelError, ErrorNotice)
		return View{}, fmt.Errorf("widget: click: %w", err)
	}
	c.tracker.MarkStale(path)

	inst.stats.Record(ts)
	inst.stats.Recompute(c.collector.Now())
	changed, rec := c.registry.Upsert(registry.Input{
		HabitKey:   inst.opts.HabitKey,
		Group:      inst.opts.Group,
		SourcePath: inst.sourcePath,
		Options:    inst.opts,
		Stats:      inst.stats,
	})
	view := c.renderLocked(inst)
	inst.mu.Unlock()

	if changed {
		c.bus.EmitGroup(rec.Group)
	}
	c.publisher.PublishHabitEvent(EventLogged, inst.opts.HabitKey, inst.sourcePath)
	c.notifier.Notify(notify.LevelInfo, "Added "+inst.opts.Title)
	return view, nil
}

// View renders widget id at the current time.
func (c *Controller) View(id string) (View, error) {
	inst, err := c.get(id)
	if err != nil {
		return View{}, err
	}
	return c.render(inst), nil
}

// Unmount tears widget id down and drops its registry record.
func (c *Controller) Unmount(id string) error {
	c.mu.Lock()
	inst, ok := c.widgets[id]
	delete(c.widgets, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("widget: unmount %s: %w", id, apperr.ErrNotFound)
	}
	c.dispose(inst)
	return nil
}

// IDs returns the mounted widget IDs in sorted order.
func (c *Controller) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.widgets))
	for id := range c.widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close unmounts every widget.
func (c *Controller) Close() {
	c.mu.Lock()
	widgets := c.widgets
	c.widgets = make(map[string]*instance)
	c.mu.Unlock()
	for _, inst := range widgets {
		c.dispose(inst)
	}
}

func (c *Controller) dispose(inst *instance) {
	rec, ok := c.registry.Remove(inst.opts.HabitKey, inst.sourcePath)
	if ok {
		c.bus.EmitGroup(rec.Group)
	}
	c.publisher.PublishHabitEvent(EventUnmounted, inst.opts.HabitKey, inst.sourcePath)
}

func (c *Controller) get(id string) (*instance, error) {
	c.mu.RLock()
	inst, ok := c.widgets[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("widget: %s: %w", id, apperr.ErrNotFound)
	}
	return inst, nil
}

func (c *Controller) render(inst *instance) View {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return c.renderLocked(inst)
}

func (c *Controller) renderLocked(inst *instance) View {
	v := BuildView(inst.opts, inst.stats, c.collector.Now())
	v.ID = inst.id
	v.SourcePath = inst.sourcePath
	return v
}
