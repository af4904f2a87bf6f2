package widget

import (
	"fmt"
	"time"
)

// NoEntry is shown when a habit was never logged.
const NoEntry = "—"

// HumanAgo renders the age of last in a short form: "just now", "5m ago",
// "30h ago" (hours are kept until two days have passed), "3d ago".
func HumanAgo(last, now time.Time) string {
	if last.IsZero() {
		return NoEntry
	}
	mins := int(now.Sub(last) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	days := mins / 1440
	hours := (mins % 1440) / 60

	switch {
	case days == 0 && hours < 1:
		if mins < 2 {
			return "just now"
		}
		return fmt.Sprintf("%dm ago", mins)
	case days < 2:
		return fmt.Sprintf("%dh ago", days*24+hours)
	default:
		return fmt.Sprintf("%dd ago", days)
	}
}
