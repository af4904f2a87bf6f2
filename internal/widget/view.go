package widget

import (
	"fmt"
	"time"

	"github.com/quipex/habit-button/internal/habit"
)

// DefaultIcon is shown on the button when the block sets none.
const DefaultIcon = "✅"

// DoneIcon replaces the icon once the habit was logged today.
const DoneIcon = "✓"

// Meta is the text line under the heatmap.
type Meta struct {
	Last       string `json:"last"`
	Overdue    bool   `json:"overdue"`
	Streak     int    `json:"streak"`
	StreakText string `json:"streakText"`
	HintHours  int    `json:"hintHours,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// Dimensions are the sizing options of the heatmap.
type Dimensions struct {
	Weeks    int `json:"weeks"`
	Days     int `json:"days"`
	CellSize int `json:"cellSize"`
	CellGap  int `json:"cellGap"`
	DotSize  int `json:"dotSize"`
	DotGap   int `json:"dotGap"`
}

// View is the render model of a habit widget.
type View struct {
	ID         string     `json:"id,omitempty"`
	SourcePath string     `json:"sourcePath,omitempty"`
	HabitKey   string     `json:"habitKey,omitempty"`
	Tag        string     `json:"tag,omitempty"`
	Title      string     `json:"title,omitempty"`
	Group      string     `json:"group,omitempty"`
	Icon       string     `json:"icon,omitempty"`
	Done       bool       `json:"done"`
	Border     bool       `json:"border"`
	Error      string     `json:"error,omitempty"`
	Heatmap    Heatmap    `json:"heatmap"`
	Meta       Meta       `json:"meta"`
	Dimensions Dimensions `json:"dimensions"`
}

// BuildView renders opts and stats as seen at now.
func BuildView(opts habit.Options, stats *habit.Stats, now time.Time) View {
	done := stats != nil && stats.DoneOn(now)
	icon := opts.Icon
	if icon == "" {
		icon = DefaultIcon
	}
	if done {
		icon = DoneIcon
	}
	return View{
		HabitKey: opts.HabitKey,
		Tag:      opts.HabitTag,
		Title:    opts.DisplayTitle,
		Group:    opts.Group,
		Icon:     icon,
		Done:     done,
		Border:   opts.Border,
		Heatmap:  BuildHeatmap(opts, stats, now),
		Meta:     BuildMeta(stats, now),
		Dimensions: Dimensions{
			Weeks:    opts.Weeks,
			Days:     opts.Days,
			CellSize: opts.CellSize,
			CellGap:  opts.CellGap,
			DotSize:  opts.DotSize,
			DotGap:   opts.DotGap,
		},
	}
}

// BuildMeta renders the last-entry age, streak and overdue hint.
func BuildMeta(stats *habit.Stats, now time.Time) Meta {
	if stats == nil {
		return Meta{Last: NoEntry, StreakText: StreakText(0)}
	}
	st := habit.Evaluate(stats, now)
	m := Meta{
		Last:       HumanAgo(stats.LastTs, now),
		Overdue:    st.Overdue,
		Streak:     stats.Streak,
		StreakText: StreakText(stats.Streak),
		HintHours:  st.HintHours,
	}
	if st.HintHours > 0 {
		m.Hint = HintText(st.HintHours)
	}
	return m
}

// StreakText describes a streak length.
func StreakText(streak int) string {
	switch streak {
	case 0:
		return "no streak"
	case 1:
		return "1 day streak"
	default:
		return fmt.Sprintf("%d days streak", streak)
	}
}

// HintText is the "time left" badge shown inside the warning window.
func HintText(hours int) string {
	return fmt.Sprintf("<%dh 🔥", hours)
}
