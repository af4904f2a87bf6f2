package widget

import (
	"time"

	"github.com/quipex/habit-button/internal/habit"
)

// MaxLevel is the highest heatmap intensity.
const MaxLevel = 4

// Cell is one day of a heatmap.
type Cell struct {
	ISO    string `json:"iso"`
	Count  int    `json:"count"`
	Level  int    `json:"level"`
	Future bool   `json:"future,omitempty"`
}

// Heatmap is either a grid of week columns or a single row of days.
type Heatmap struct {
	Layout  string   `json:"layout"`
	Columns [][]Cell `json:"columns,omitempty"`
	Row     []Cell   `json:"row,omitempty"`
}

// BuildHeatmap renders the layout selected in opts for the day of now.
func BuildHeatmap(opts habit.Options, stats *habit.Stats, now time.Time) Heatmap {
	if opts.HeatLayout == habit.LayoutRow {
		return Heatmap{Layout: habit.LayoutRow, Row: Row(stats, opts.Days, now)}
	}
	return Heatmap{Layout: habit.LayoutGrid, Columns: Grid(stats, opts.Weeks, opts.WeekStart, now)}
}

// Row returns the last days days ending today, oldest first.
func Row(stats *habit.Stats, days int, now time.Time) []Cell {
	today := midnight(now)
	start := today.AddDate(0, 0, -(days - 1))
	out := make([]Cell, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, cellFor(stats, start.AddDate(0, 0, i), today))
	}
	return out
}

// Grid returns weeks columns of seven days. The last column holds the
// current week; days after today are flagged as future.
func Grid(stats *habit.Stats, weeks int, weekStart string, now time.Time) [][]Cell {
	today := midnight(now)
	dow := int(today.Weekday())
	if weekStart != habit.WeekStartSunday {
		dow = (dow + 6) % 7
	}
	start := today.AddDate(0, 0, -dow-(weeks-1)*7)

	cols := make([][]Cell, 0, weeks)
	for w := 0; w < weeks; w++ {
		col := make([]Cell, 0, 7)
		for i := 0; i < 7; i++ {
			col = append(col, cellFor(stats, start.AddDate(0, 0, w*7+i), today))
		}
		cols = append(cols, col)
	}
	return cols
}

func cellFor(stats *habit.Stats, day, today time.Time) Cell {
	iso := habit.ISODate(day)
	count := 0
	if stats != nil {
		count = stats.Count(iso)
	}
	return Cell{
		ISO:    iso,
		Count:  count,
		Level:  min(count, MaxLevel),
		Future: day.After(today),
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
