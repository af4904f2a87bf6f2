package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/quipex/habit-button/internal/apperr"
	"github.com/quipex/habit-button/internal/events"
	"github.com/quipex/habit-button/internal/group"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/notify"
	"github.com/quipex/habit-button/internal/registry"
	"github.com/quipex/habit-button/internal/storage"
	"github.com/quipex/habit-button/internal/widget"
)

// Runtime holds the shared habit engine of one vault. The HTTP server, the
// MCP server and the one-shot CLI commands all build on it.
type Runtime struct {
	Config     *Config
	Logger     *slog.Logger
	Store      *storage.FS
	Registry   *registry.Registry
	Bus        *events.Bus
	Tracker    *group.Tracker
	Collector  *habit.Collector
	Aggregator *group.Aggregator
}

// NewRuntime opens the vault of cfg and wires the engine around it. A nil
// clock means time.Now.
func NewRuntime(cfg *Config, logger *slog.Logger, clock func() time.Time) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	loc, err := cfg.Vault.Location()
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	collectorOpts := []habit.CollectorOption{habit.WithLocation(loc), habit.WithLogger(logger)}
	if clock != nil {
		collectorOpts = append(collectorOpts, habit.WithClock(clock))
	}
	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Registry:  registry.New(),
		Bus:       events.NewBus(logger),
		Tracker:   group.NewTracker(),
		Collector: habit.NewCollector(store, collectorOpts...),
	}
	rt.Aggregator = group.New(group.Deps{
		Corpus:    store,
		Registry:  rt.Registry,
		Bus:       rt.Bus,
		Tracker:   rt.Tracker,
		Collector: rt.Collector,
		Settings:  cfg.Habits,
		Logger:    logger,
	})
	return rt, nil
}

// Controller builds a widget controller reporting through notifier and
// publisher. Either may be nil.
func (rt *Runtime) Controller(notifier notify.Sink, publisher widget.Publisher) *widget.Controller {
	return widget.NewController(widget.Deps{
		Vault:     rt.Store,
		Registry:  rt.Registry,
		Bus:       rt.Bus,
		Tracker:   rt.Tracker,
		Collector: rt.Collector,
		Settings:  rt.Config.Habits,
		Notifier:  notifier,
		Publisher: publisher,
		Logger:    rt.Logger,
	})
}

// HabitOptions resolves a habit declared only by its title.
func (rt *Runtime) HabitOptions(title string) (habit.Options, error) {
	opts, ok := habit.ResolveOptions(habit.BlockOptions{Title: title}, rt.Config.Habits)
	if !ok {
		return habit.Options{}, fmt.Errorf("habit %q: %w", title, apperr.ErrNoTitle)
	}
	return opts, nil
}

// Stats scans the vault for the habit titled title.
func (rt *Runtime) Stats(title string) (habit.Options, *habit.Stats, error) {
	opts, err := rt.HabitOptions(title)
	if err != nil {
		return habit.Options{}, nil, err
	}
	return opts, rt.Collector.Collect(opts), nil
}

// Log appends an entry for the habit titled title at the current time.
func (rt *Runtime) Log(title string) (time.Time, string, error) {
	opts, err := rt.HabitOptions(title)
	if err != nil {
		return time.Time{}, "", err
	}
	ts, path, err := habit.LogEntry(rt.Store, opts, rt.Collector.Now(), rt.Logger)
	if err != nil {
		return time.Time{}, "", err
	}
	rt.Tracker.MarkStale(path)
	return ts, path, nil
}

// Close drops all in-memory state.
func (rt *Runtime) Close() {
	rt.Registry.Clear()
	rt.Bus.Clear()
	rt.Tracker.Clear()
}
