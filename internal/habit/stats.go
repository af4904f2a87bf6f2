package habit

import (
	"sort"
	"time"
)

// Stats is the aggregate snapshot of one habit. HasByISO is always exactly
// the key set of CountsByISO.
type Stats struct {
	CountsByISO        map[string]int
	HasByISO           map[string]struct{}
	LastTsByISO        map[string]time.Time
	LastTs             time.Time // zero when there are no entries
	Streak             int
	AllowedGapHours    int
	AllowedGap         time.Duration
	WarningWindowHours int
}

// NewStats returns an empty snapshot with the given thresholds.
func NewStats(graceHours, warningHours int) *Stats {
	allowed := graceHours + warningHours
	return &Stats{
		CountsByISO:        make(map[string]int),
		HasByISO:           make(map[string]struct{}),
		LastTsByISO:        make(map[string]time.Time),
		AllowedGapHours:    allowed,
		AllowedGap:         time.Duration(allowed) * time.Hour,
		WarningWindowHours: warningHours,
	}
}

// HasLast reports whether any entry has been recorded.
func (s *Stats) HasLast() bool {
	return !s.LastTs.IsZero()
}

// Record adds one occurrence at ts to the per-day aggregates. It does not
// touch LastTs or Streak; call Recompute afterwards.
func (s *Stats) Record(ts time.Time) {
	iso := ISODate(ts)
	s.CountsByISO[iso]++
	s.HasByISO[iso] = struct{}{}
	if prev, ok := s.LastTsByISO[iso]; !ok || ts.After(prev) {
		s.LastTsByISO[iso] = ts
	}
}

// Days returns the per-day latest timestamps in ascending order.
func (s *Stats) Days() []time.Time {
	days := make([]time.Time, 0, len(s.LastTsByISO))
	for _, ts := range s.LastTsByISO {
		days = append(days, ts)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Recompute refreshes LastTs and Streak from the per-day timestamps.
func (s *Stats) Recompute(now time.Time) {
	days := s.Days()
	if len(days) == 0 {
		s.LastTs = time.Time{}
	} else {
		s.LastTs = days[len(days)-1]
	}
	s.Streak = ComputeStreak(days, s.AllowedGap, now)
}

// DoneOn reports whether at least one entry exists on day.
func (s *Stats) DoneOn(day time.Time) bool {
	_, ok := s.HasByISO[ISODate(day)]
	return ok
}

// Count returns the number of entries recorded on the given ISO date.
func (s *Stats) Count(iso string) int {
	return s.CountsByISO[iso]
}

// Clone returns a deep copy; the maps are never shared.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return nil
	}
	out := *s
	out.CountsByISO = make(map[string]int, len(s.CountsByISO))
	for k, v := range s.CountsByISO {
		out.CountsByISO[k] = v
	}
	out.HasByISO = make(map[string]struct{}, len(s.HasByISO))
	for k := range s.HasByISO {
		out.HasByISO[k] = struct{}{}
	}
	out.LastTsByISO = make(map[string]time.Time, len(s.LastTsByISO))
	for k, v := range s.LastTsByISO {
		out.LastTsByISO[k] = v
	}
	return &out
}

// ComputeStreak counts consecutive activity days ending at the last one.
// days must be ascending. The streak is 0 once now is more than allowedGap
// past the last day; otherwise it extends backwards while the gap between
// neighbouring days stays within allowedGap.
func ComputeStreak(days []time.Time, allowedGap time.Duration, now time.Time) int {
	if len(days) == 0 {
		return 0
	}
	last := days[len(days)-1]
	if now.Sub(last) > allowedGap {
		return 0
	}
	streak := 1
	for i := len(days) - 2; i >= 0; i-- {
		if days[i+1].Sub(days[i]) > allowedGap {
			break
		}
		streak++
	}
	return streak
}
