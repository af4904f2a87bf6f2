package habit

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	last := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		since       time.Duration
		wantOverdue bool
		wantHint    int
		wantBroken  bool
	}{
		{"fresh", 18 * time.Hour, false, 0, false},
		{"entering window", 24*time.Hour + time.Minute, true, 6, false},
		{"inside window", 26 * time.Hour, true, 4, false},
		{"last hour", 29 * time.Hour, true, 1, false},
		{"half hour left", 29*time.Hour + 30*time.Minute, true, 1, false},
		{"threshold reached", 30 * time.Hour, false, 0, false},
		{"broken", 31 * time.Hour, true, 0, true},
		{"long broken", 400 * time.Hour, true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := last.Add(tt.since)
			stats := NewStats(24, 6)
			stats.Record(last)
			stats.Recompute(now)

			st := Evaluate(stats, now)
			if st.Overdue != tt.wantOverdue || st.HintHours != tt.wantHint || st.Broken != tt.wantBroken {
				t.Errorf("Evaluate at +%v = %+v", tt.since, st)
			}
			if st.Alive == st.Broken {
				t.Errorf("alive and broken must differ: %+v", st)
			}
		})
	}
}

func TestEvaluateNoEntries(t *testing.T) {
	st := Evaluate(NewStats(24, 24), time.Now())
	if st.HasLast || st.Overdue || st.HintHours != 0 {
		t.Errorf("unexpected status %+v", st)
	}
	if st := Evaluate(nil, time.Now()); st.Overdue {
		t.Error("nil stats should not be overdue")
	}
}

func TestEvaluateZeroWarningWindow(t *testing.T) {
	last := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	now := last.Add(23 * time.Hour)
	stats := NewStats(24, 0)
	stats.Record(last)
	stats.Recompute(now)
	if st := Evaluate(stats, now); st.Overdue || st.HintHours != 0 {
		t.Errorf("zero window should never warn: %+v", st)
	}
}
