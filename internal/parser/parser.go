// Package parser scans Markdown text for fenced habit blocks and for tag-token
// occurrences written by the logging operation.
package parser

import (
	"regexp"
	"strings"
	"sync"
)

// Fence languages recognised in documents.
const (
	HabitBlockLang = "habit-button"
	GroupBlockLang = "habit-group"
)

// Occurrence is one tag token found in a document.
type Occurrence struct {
	Key  string // lower-cased token after the prefix
	Time string // raw HH:MM, empty when absent
}

var (
	blockPatterns sync.Map // lang -> *regexp.Regexp
	tagPatterns   sync.Map // prefix -> *regexp.Regexp
)

func blockPattern(lang string) *regexp.Regexp {
	if re, ok := blockPatterns.Load(lang); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(lang) + `[^\n]*\n(.*?)` + "```")
	blockPatterns.Store(lang, re)
	return re
}

// tagPattern matches "#<prefix>_<token>" case-insensitively, optionally
// followed by blanks and an H:MM or HH:MM time on the same line. A time on
// the next line belongs to no occurrence, so the token counts as midnight.
func tagPattern(prefix string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(prefix); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta("#"+prefix+"_") + `([^\s#]+)(?:[ \t]+(\d{1,2}:\d{2}))?`)
	tagPatterns.Store(prefix, re)
	return re
}

// ExtractBlocks returns the trimmed, non-empty bodies of every fenced block
// of the given language.
func ExtractBlocks(content, lang string) []string {
	if content == "" {
		return nil
	}
	var out []string
	for _, m := range blockPattern(lang).FindAllStringSubmatch(content, -1) {
		body := strings.TrimSpace(m[1])
		if body != "" {
			out = append(out, body)
		}
	}
	return out
}

// Occurrences returns every tag token carrying prefix, in document order.
func Occurrences(content, prefix string) []Occurrence {
	if content == "" {
		return nil
	}
	matches := tagPattern(prefix).FindAllStringSubmatch(content, -1)
	out := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		out = append(out, Occurrence{
			Key:  strings.ToLower(strings.TrimSpace(m[1])),
			Time: strings.TrimSpace(m[2]),
		})
	}
	return out
}
