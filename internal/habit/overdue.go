package habit

import (
	"math"
	"time"
)

// Status is the presentation-facing streak state of a snapshot at a moment.
type Status struct {
	HasLast        bool
	HoursSinceLast float64
	RemainingHours float64
	Alive          bool
	Broken         bool
	Overdue        bool
	// HintHours is the rounded-up time left, or 0 when no hint applies.
	HintHours int
}

// Evaluate derives the overdue signal and hint for stats at now.
//
// A live streak is overdue while 0 < remaining <= warning window; a broken
// one (an entry exists but the streak is 0) is always overdue.
func Evaluate(stats *Stats, now time.Time) Status {
	var st Status
	if stats == nil || !stats.HasLast() {
		return st
	}
	st.HasLast = true
	st.HoursSinceLast = now.Sub(stats.LastTs).Hours()
	st.RemainingHours = float64(stats.AllowedGapHours) - st.HoursSinceLast
	st.Alive = stats.Streak > 0
	st.Broken = stats.Streak == 0

	warn := float64(stats.WarningWindowHours)
	inWindow := st.RemainingHours > 0 && st.RemainingHours <= warn
	finite := !math.IsInf(st.HoursSinceLast, 0) && !math.IsNaN(st.HoursSinceLast)

	switch {
	case st.Alive && inWindow:
		st.Overdue = true
		st.HintHours = int(math.Ceil(st.RemainingHours))
	case st.Broken && finite:
		st.Overdue = true
	}
	return st
}
