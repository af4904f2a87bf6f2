// Package termview renders habit widgets for the terminal with lipgloss.
package termview

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/quipex/habit-button/internal/widget"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

const (
	cellGlyph   = "■"
	cellWidth   = 2 // glyph plus gap
	labelWidth  = 4 // "Mon "
	borderWidth = 4 // border plus padding on both sides
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	tagStyle     = lipgloss.NewStyle().Faint(true)
	labelStyle   = lipgloss.NewStyle().Faint(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	streakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7DC6F"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)

	// Indexed by heatmap level.
	levelStyles = [widget.MaxLevel + 1]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("22")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
	}
)

// Render draws v within width columns. Older heatmap days are dropped
// first when the terminal is too narrow.
func Render(v widget.View, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	inner := width
	if v.Border {
		inner -= borderWidth
	}

	var body string
	if v.Error != "" {
		body = errorStyle.Render(v.Error)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			header(v),
			"",
			heatmap(v.Heatmap, inner),
			"",
			meta(v.Meta),
		)
	}
	if v.Border {
		return boxStyle.Render(body)
	}
	return body
}

func header(v widget.View) string {
	parts := []string{v.Icon, titleStyle.Render(v.Title)}
	if v.Tag != "" {
		parts = append(parts, tagStyle.Render(v.Tag))
	}
	if v.Group != "" {
		parts = append(parts, tagStyle.Render("["+v.Group+"]"))
	}
	return strings.Join(parts, " ")
}

func meta(m widget.Meta) string {
	last := "last: " + m.Last
	if m.Overdue {
		last = overdueStyle.Render(last)
	}
	parts := []string{last, streakStyle.Render(m.StreakText)}
	if m.Hint != "" {
		parts = append(parts, overdueStyle.Render(m.Hint))
	}
	return strings.Join(parts, " · ")
}

func heatmap(h widget.Heatmap, width int) string {
	if len(h.Columns) > 0 {
		return grid(h.Columns, width)
	}
	return row(h.Row, width)
}

func grid(columns [][]widget.Cell, width int) string {
	if fit := (width - labelWidth) / cellWidth; fit > 0 && len(columns) > fit {
		columns = columns[len(columns)-fit:]
	}
	lines := make([]string, 0, 7)
	for day := 0; day < 7; day++ {
		var b strings.Builder
		b.WriteString(labelStyle.Render(weekdayLabel(columns, day)))
		for _, col := range columns {
			if day < len(col) {
				b.WriteString(cell(col[day]))
			}
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}

func row(cells []widget.Cell, width int) string {
	if fit := width / cellWidth; fit > 0 && len(cells) > fit {
		cells = cells[len(cells)-fit:]
	}
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(cell(c))
	}
	return strings.TrimRight(b.String(), " ")
}

func cell(c widget.Cell) string {
	if c.Future {
		return "  "
	}
	level := min(max(c.Level, 0), widget.MaxLevel)
	return levelStyles[level].Render(cellGlyph) + " "
}

// weekdayLabel labels every other row, like most contribution graphs.
func weekdayLabel(columns [][]widget.Cell, day int) string {
	blank := strings.Repeat(" ", labelWidth)
	if day%2 == 1 || len(columns) == 0 || day >= len(columns[0]) {
		return blank
	}
	t, err := time.Parse(time.DateOnly, columns[0][day].ISO)
	if err != nil {
		return blank
	}
	return t.Weekday().String()[:3] + " "
}
