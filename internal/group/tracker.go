package group

import "sync"

// Tracker remembers which (path, group) pairs were scanned since the path
// last changed.
type Tracker struct {
	mu      sync.Mutex
	scanned map[string]map[string]struct{} // path -> normalized groups
}

// NewTracker returns an empty tracker; every path starts stale.
func NewTracker() *Tracker {
	return &Tracker{scanned: make(map[string]map[string]struct{})}
}

// MarkStale forgets every scan of path.
func (t *Tracker) MarkStale(path string) {
	t.mu.Lock()
	delete(t.scanned, path)
	t.mu.Unlock()
}

// ShouldScan reports whether path needs scanning for group.
func (t *Tracker) ShouldScan(path, group string, force bool) bool {
	if force {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	groups, ok := t.scanned[path]
	if !ok {
		return true
	}
	_, fresh := groups[group]
	return !fresh
}

// MarkFresh records a completed scan of path for group.
func (t *Tracker) MarkFresh(path, group string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	groups, ok := t.scanned[path]
	if !ok {
		groups = make(map[string]struct{})
		t.scanned[path] = groups
	}
	groups[group] = struct{}{}
}

// Clear marks every path stale.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.scanned = make(map[string]map[string]struct{})
	t.mu.Unlock()
}
