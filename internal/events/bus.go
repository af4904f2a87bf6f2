// Package events is the in-process publish/subscribe bus that tells group
// views a member habit changed.
package events

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quipex/habit-button/internal/habit"
)

// Listener is notified when a group changes.
type Listener func()

// GroupListener is notified with the normalized name of any changed group.
type GroupListener func(group string)

// Bus maps normalized group names to listener sets. Sets are created on
// first subscription and dropped with their last subscriber.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	groups map[string]map[uint64]Listener
	any    map[uint64]GroupListener
	logger *slog.Logger
}

// NewBus returns an empty bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		groups: make(map[string]map[uint64]Listener),
		any:    make(map[uint64]GroupListener),
		logger: logger,
	}
}

// OnGroup subscribes listener to group. The returned func unsubscribes and
// is safe to call more than once. An empty group subscribes nothing.
func (b *Bus) OnGroup(group string, listener Listener) func() {
	name := habit.NormalizeGroup(group)
	if name == "" || listener == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	set, ok := b.groups[name]
	if !ok {
		set = make(map[uint64]Listener)
		b.groups[name] = set
	}
	set[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		current, ok := b.groups[name]
		if !ok {
			return
		}
		delete(current, id)
		if len(current) == 0 {
			delete(b.groups, name)
		}
	}
}

// OnAny subscribes listener to every group.
func (b *Bus) OnAny(listener GroupListener) func() {
	if listener == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.any[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.any, id)
		b.mu.Unlock()
	}
}

// EmitGroup calls every listener of group. A panicking listener is logged
// and the remaining listeners still run.
func (b *Bus) EmitGroup(group string) {
	name := habit.NormalizeGroup(group)
	if name == "" {
		return
	}

	b.mu.Lock()
	ids := make([]uint64, 0, len(b.groups[name]))
	for id := range b.groups[name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, b.groups[name][id])
	}
	wildcards := make([]GroupListener, 0, len(b.any))
	for _, l := range b.any {
		wildcards = append(wildcards, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		b.call(name, l)
	}
	for _, l := range wildcards {
		b.call(name, func() { l(name) })
	}
}

func (b *Bus) call(group string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("events: group listener failed",
				slog.String("group", group),
				slog.String("error", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}

// ListenerCount returns the number of listeners subscribed to group.
func (b *Bus) ListenerCount(group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups[habit.NormalizeGroup(group)])
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.groups = make(map[string]map[uint64]Listener)
	b.any = make(map[uint64]GroupListener)
	b.mu.Unlock()
}
