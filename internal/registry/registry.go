// Package registry is the process-wide cache of resolved habit declarations.
// Records are keyed by (habit key, source path); several sources declaring
// the same key is a detectable duplicate, never merged.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/quipex/habit-button/internal/habit"
)

// Record is one habit declaration in one source document.
type Record struct {
	HabitKey   string
	Group      string
	SourcePath string
	Options    habit.Options
	Stats      *habit.Stats
	UpdatedAt  time.Time
}

// Input is the argument of Upsert.
type Input struct {
	HabitKey   string
	Group      string
	SourcePath string
	Options    habit.Options
	Stats      *habit.Stats
}

type entry struct {
	Record
	fingerprint string
}

// Registry stores records. It is safe for concurrent use; every record it
// returns is a deep copy.
type Registry struct {
	mu      sync.RWMutex
	records map[string]map[string]*entry // habitKey -> sourcePath -> entry
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]map[string]*entry),
		now:     time.Now,
	}
}

// Upsert replaces the record for (in.HabitKey, in.SourcePath). changed is
// true on first insert and whenever the fingerprint differs from the
// previous record.
func (r *Registry) Upsert(in Input) (bool, Record) {
	e := &entry{
		Record: Record{
			HabitKey:   in.HabitKey,
			Group:      in.Group,
			SourcePath: in.SourcePath,
			Options:    in.Options,
			Stats:      in.Stats.Clone(),
			UpdatedAt:  r.now(),
		},
		fingerprint: Fingerprint(in),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	perKey, ok := r.records[in.HabitKey]
	if !ok {
		perKey = make(map[string]*entry)
		r.records[in.HabitKey] = perKey
	}
	prev, existed := perKey[in.SourcePath]
	perKey[in.SourcePath] = e

	changed := !existed || prev.fingerprint != e.fingerprint
	return changed, e.copy()
}

// Remove deletes the record for (habitKey, sourcePath) and returns it.
func (r *Registry) Remove(habitKey, sourcePath string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	perKey, ok := r.records[habitKey]
	if !ok {
		return Record{}, false
	}
	e, ok := perKey[sourcePath]
	if !ok {
		return Record{}, false
	}
	r.deleteLocked(habitKey, sourcePath)
	return e.copy(), true
}

// PruneSourceRecords removes every record declared by sourcePath whose key is
// not in keep. A non-empty group restricts pruning to records of that group.
func (r *Registry) PruneSourceRecords(sourcePath, group string, keep map[string]struct{}) []Record {
	target := habit.NormalizeGroup(group)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Record
	for habitKey, perKey := range r.records {
		e, ok := perKey[sourcePath]
		if !ok {
			continue
		}
		if target != "" && habit.NormalizeGroup(e.Group) != target {
			continue
		}
		if _, kept := keep[habitKey]; kept {
			continue
		}
		removed = append(removed, e.copy())
		r.deleteLocked(habitKey, sourcePath)
	}
	sortRecords(removed)
	return removed
}

func (r *Registry) deleteLocked(habitKey, sourcePath string) {
	perKey := r.records[habitKey]
	delete(perKey, sourcePath)
	if len(perKey) == 0 {
		delete(r.records, habitKey)
	}
}

// Get returns the record for (habitKey, sourcePath).
func (r *Registry) Get(habitKey, sourcePath string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.records[habitKey][sourcePath]
	if !ok {
		return Record{}, false
	}
	return e.copy(), true
}

// GetAll returns every record ordered by key then source path.
func (r *Registry) GetAll() []Record {
	return r.collect(func(*entry) bool { return true })
}

// GetByGroup returns the records of a group. An empty group matches nothing.
func (r *Registry) GetByGroup(group string) []Record {
	target := habit.NormalizeGroup(group)
	if target == "" {
		return nil
	}
	return r.collect(func(e *entry) bool {
		return habit.NormalizeGroup(e.Group) == target
	})
}

// GetDuplicates maps each habit key declared by more than one source to all
// of its records.
func (r *Registry) GetDuplicates() map[string][]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Record)
	for habitKey, perKey := range r.records {
		if len(perKey) < 2 {
			continue
		}
		recs := make([]Record, 0, len(perKey))
		for _, e := range perKey {
			recs = append(recs, e.copy())
		}
		sortRecords(recs)
		out[habitKey] = recs
	}
	return out
}

// Size returns the number of records.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, perKey := range r.records {
		n += len(perKey)
	}
	return n
}

// Clear drops every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.records = make(map[string]map[string]*entry)
	r.mu.Unlock()
}

func (r *Registry) collect(match func(*entry) bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, perKey := range r.records {
		for _, e := range perKey {
			if match(e) {
				out = append(out, e.copy())
			}
		}
	}
	sortRecords(out)
	return out
}

func (e *entry) copy() Record {
	rec := e.Record
	rec.Stats = e.Stats.Clone()
	return rec
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].HabitKey != recs[j].HabitKey {
			return recs[i].HabitKey < recs[j].HabitKey
		}
		return recs[i].SourcePath < recs[j].SourcePath
	})
}
