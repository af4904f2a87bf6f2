package mcpserver

import (
	"strconv"
	"strings"

	"github.com/quipex/habit-button/internal/habit"
)

const tagFormatTemplate = `# Habit Tag Format

Habit entries are plain lines in daily notes. Nothing else is stored.

## Where

Daily notes live in ` + "`{folder}/`" + ` and are named with the ` + "`{format}`" + ` format
(moment tokens: YYYY, MM, M, DD, D, MMMM, MMM, dddd, ddd). The format may contain
slashes for nested folders. When no folder is configured, every document of the
vault is considered and only its base name is matched against the format.

## Line format

` + "```" + `markdown
- {example} 07:30
` + "```" + `

1. The tag is ` + "`#{prefix}_<habit_key>`" + `. The habit key is the title lowercased,
   with whitespace turned into underscores and other punctuation dropped
   (` + "`Morning walk!`" + ` → ` + "`morning_walk`" + `).
2. Matching is case-insensitive and the tag must not run into other tag characters
   (` + "`{example}-extra`" + ` is a different habit).
3. The optional ` + "`HH:MM`" + ` time follows on the same line. Without it the entry counts
   at 00:00 of the note's date. An invalid time (` + "`25:00`" + `) drops the entry.
4. Every occurrence counts, so two lines on the same day give a count of 2.

## Streaks

A streak survives while the last entry is at most {grace}h old (grace period) and
turns overdue in the last {warn}h of that window.
`

// TagFormatContract renders the tag format description for settings.
func TagFormatContract(settings habit.Settings) string {
	example := habit.TagToken(habit.NormalizeTagPrefix(settings.TagPrefix), "morning_walk")
	folder := habit.TrimSlashes(settings.DailyFolder)
	if folder == "" {
		folder = "<any>"
	}
	r := strings.NewReplacer(
		"{folder}", folder,
		"{format}", habit.NormalizeDailyNoteFormat(settings.DailyNoteFormat, ""),
		"{prefix}", habit.NormalizeTagPrefix(settings.TagPrefix),
		"{example}", example,
		"{grace}", strconv.Itoa(settings.GracePeriodHours),
		"{warn}", strconv.Itoa(settings.WarningWindowHours),
	)
	return r.Replace(tagFormatTemplate)
}
