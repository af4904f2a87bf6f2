package termview

import (
	"strings"
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/widget"
)

// Saturday.
var now = time.Date(2024, time.June, 15, 20, 0, 0, 0, time.UTC)

func walkView(t *testing.T, block habit.BlockOptions, marks ...time.Time) widget.View {
	t.Helper()
	block.Title = "Walk"
	opts, ok := habit.ResolveOptions(block, habit.DefaultSettings())
	if !ok {
		t.Fatal("options did not resolve")
	}
	stats := habit.NewStats(opts.GracePeriodHours, opts.WarningWindowHours)
	for _, m := range marks {
		stats.Record(m)
	}
	stats.Recompute(now)
	return widget.BuildView(opts, stats, now)
}

func TestRenderGrid(t *testing.T) {
	v := walkView(t, habit.BlockOptions{},
		now.Add(-26*time.Hour),
		now.Add(-time.Hour),
	)
	out := Render(v, 100)

	for _, want := range []string{"╭", "Walk", "#habit_walk", "Mon", "2 days streak", "last: 1h ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, cellGlyph); n != 26*7-1 {
		t.Errorf("cells = %d, want %d (tomorrow is a future cell)", n, 26*7-1)
	}
}

func TestRenderTrimsToWidth(t *testing.T) {
	v := walkView(t, habit.BlockOptions{})
	v.Border = false

	out := Render(v, 24)
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Mon") {
			if n := strings.Count(line, cellGlyph); n != (24-labelWidth)/cellWidth {
				t.Errorf("Mon row cells = %d", n)
			}
		}
	}
	if strings.Contains(out, "╭") {
		t.Error("borderless view should not draw a box")
	}
}

func TestRenderRow(t *testing.T) {
	v := walkView(t, habit.BlockOptions{HeatLayout: habit.LayoutRow, Days: habit.Number{Value: 30, Set: true}})
	v.Border = false

	if n := strings.Count(Render(v, 200), cellGlyph); n != 30 {
		t.Errorf("row cells = %d, want 30", n)
	}
	if n := strings.Count(Render(v, 20), cellGlyph); n != 10 {
		t.Errorf("narrow row cells = %d, want 10", n)
	}
}

func TestRenderOverdueHint(t *testing.T) {
	v := walkView(t, habit.BlockOptions{}, now.Add(-40*time.Hour))
	out := Render(v, 0)
	if !strings.Contains(out, "<8h 🔥") {
		t.Errorf("hint missing:\n%s", out)
	}
}

func TestRenderError(t *testing.T) {
	out := Render(widget.View{Error: "Habit title is required"}, 80)
	if strings.TrimSpace(out) != "Habit title is required" {
		t.Errorf("output = %q", out)
	}
}
