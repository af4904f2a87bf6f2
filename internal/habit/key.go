// Package habit implements the habit statistics engine: key normalization,
// daily-note naming, option resolution, corpus scanning, streak and overdue
// policy, and the append-only logging operation.
package habit

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTagPrefix is used when the configured prefix normalizes to nothing.
const DefaultTagPrefix = "habit"

// isKeyRune reports whether r may appear in a habit key or tag prefix:
// Latin a-z, Cyrillic а-я and ё, ASCII digits and underscore.
func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я':
		return true
	case r == 'ё' || r == '_':
		return true
	}
	return false
}

// collapseUnderscores squeezes runs of '_' and trims them from both ends.
func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

// ToHabitKey derives the canonical key of a habit title. Whitespace runs
// become a single underscore and every rune outside the key alphabet is
// dropped. The result is idempotent: ToHabitKey(ToHabitKey(x)) == ToHabitKey(x).
func ToHabitKey(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case isKeyRune(r):
			b.WriteRune(r)
		}
	}
	return collapseUnderscores(b.String())
}

// NormalizeTagPrefix sanitizes a configured tag prefix. Unlike ToHabitKey,
// foreign runes are replaced by underscores rather than dropped.
func NormalizeTagPrefix(raw string) string {
	base := strings.ToLower(strings.TrimSpace(raw))
	if base == "" {
		return DefaultTagPrefix
	}
	var b strings.Builder
	for _, r := range base {
		if isKeyRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if out := collapseUnderscores(b.String()); out != "" {
		return out
	}
	return DefaultTagPrefix
}

// TagToken returns the searchable token for a habit, e.g. "#habit_morning_walk".
func TagToken(prefix, key string) string {
	return "#" + prefix + "_" + key
}

// NormalizeGroup returns the lookup form of a group label. An empty result
// means "no group".
func NormalizeGroup(group string) string {
	return strings.ToLower(strings.TrimSpace(group))
}

// NormalizeWhitespace trims s and collapses internal whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CapitalizeFirst upper-cases the first rune of s.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TrimSlashes strips leading and trailing '/' from a vault path.
func TrimSlashes(p string) string {
	return strings.Trim(p, "/")
}

// Snippet returns a ready-to-paste habit block for the given heatmap layout.
func Snippet(layout string) string {
	if layout != LayoutRow {
		layout = LayoutGrid
	}
	return strings.Join([]string{
		"```habit-button",
		"title: My habit",
		"heatLayout: " + layout,
		"# heatLayout: grid | row",
		"```",
		"",
	}, "\n")
}
