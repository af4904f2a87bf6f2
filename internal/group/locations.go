package group

import (
	"sort"
	"strings"

	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/models"
	"github.com/quipex/habit-button/internal/registry"
)

// Locations returns the distinct locations a group block scans: its
// habitsLocations, or the declaring document when none are given.
func Locations(opts BlockOptions, sourcePath string) []string {
	seen := make(map[string]struct{})
	var out []string
	push := func(v string) {
		v = habit.TrimSlashes(strings.TrimSpace(v))
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(opts.HabitsLocations) > 0 {
		for _, loc := range opts.HabitsLocations {
			push(loc)
		}
	} else if !registry.IsAnonymousSource(sourcePath) {
		push(sourcePath)
	}
	return out
}

// ResolveLocationPaths maps a location to document paths. A folder yields
// its direct .md children; otherwise the exact path, then path.md, then the
// first path.<ext> when the location has no extension.
func ResolveLocationPaths(location string, docs []models.Document) []string {
	loc := habit.TrimSlashes(location)
	if loc == "" {
		return nil
	}

	var children []string
	for _, d := range docs {
		rest, ok := strings.CutPrefix(d.Path, loc+"/")
		if ok && rest != "" && !strings.Contains(rest, "/") {
			children = append(children, d.Path)
		}
	}
	if len(children) > 0 {
		return children
	}

	for _, d := range docs {
		if d.Path == loc {
			return []string{d.Path}
		}
	}
	for _, d := range docs {
		if d.Path == loc+".md" {
			return []string{d.Path}
		}
	}

	hasExt := strings.LastIndex(loc, ".") > strings.LastIndex(loc, "/")
	if hasExt {
		return nil
	}
	var alts []string
	for _, d := range docs {
		if strings.HasPrefix(d.Path, loc+".") {
			alts = append(alts, d.Path)
		}
	}
	if len(alts) == 0 {
		return nil
	}
	sort.Strings(alts)
	return alts[:1]
}
