package registry

import (
	"sort"

	"github.com/quipex/habit-button/internal/checksum"
	"github.com/quipex/habit-button/internal/habit"
)

// optionShape lists the option fields that affect what a widget shows or
// counts. Title, DisplayTitle and HabitTag are derived from the record key
// and are left out.
type optionShape struct {
	Group              string `json:"group"`
	DailyFolder        string `json:"dailyFolder"`
	DailyNoteFormat    string `json:"dailyNoteFormat"`
	HeatLayout         string `json:"heatLayout"`
	Weeks              int    `json:"weeks"`
	Days               int    `json:"days"`
	CellSize           int    `json:"cellSize"`
	CellGap            int    `json:"cellGap"`
	DotSize            int    `json:"dotSize"`
	DotGap             int    `json:"dotGap"`
	GracePeriodHours   int    `json:"gracePeriodHours"`
	WarningWindowHours int    `json:"warningWindowHours"`
	TemplatePath       string `json:"templatePath"`
	Icon               string `json:"icon"`
	TagPrefix          string `json:"tagPrefix"`
	Border             bool   `json:"border"`
	WeekStart          string `json:"weekStart"`
}

type dayCount struct {
	ISO   string `json:"iso"`
	Count int    `json:"count"`
}

type dayLast struct {
	ISO string `json:"iso"`
	Ms  int64  `json:"ms"`
}

type statsShape struct {
	Streak             int        `json:"streak"`
	AllowedGapHours    int        `json:"allowedGapH"`
	AllowedGapMs       int64      `json:"allowedGapMs"`
	WarningWindowHours int        `json:"warningWindowHours"`
	Counts             []dayCount `json:"counts"`
	Has                []string   `json:"has"`
	Last               []dayLast  `json:"last"`
	LastTs             *int64     `json:"lastTs"`
}

// Fingerprint returns a digest of the semantically relevant content of in.
// Map entries are sorted so equal content always yields equal digests.
func Fingerprint(in Input) string {
	o := in.Options
	shape := struct {
		Options optionShape `json:"options"`
		Stats   statsShape  `json:"stats"`
	}{
		Options: optionShape{
			Group:              habit.NormalizeGroup(in.Group),
			DailyFolder:        o.DailyFolder,
			DailyNoteFormat:    o.DailyNoteFormat,
			HeatLayout:         o.HeatLayout,
			Weeks:              o.Weeks,
			Days:               o.Days,
			CellSize:           o.CellSize,
			CellGap:            o.CellGap,
			DotSize:            o.DotSize,
			DotGap:             o.DotGap,
			GracePeriodHours:   o.GracePeriodHours,
			WarningWindowHours: o.WarningWindowHours,
			TemplatePath:       o.TemplatePath,
			Icon:               o.Icon,
			TagPrefix:          o.TagPrefix,
			Border:             o.Border,
			WeekStart:          o.WeekStart,
		},
		Stats: statsShapeOf(in.Stats),
	}
	digest, err := checksum.Of(shape)
	if err != nil {
		// Only plain values are encoded; this cannot fail.
		panic(err)
	}
	return digest
}

func statsShapeOf(s *habit.Stats) statsShape {
	if s == nil {
		return statsShape{}
	}
	shape := statsShape{
		Streak:             s.Streak,
		AllowedGapHours:    s.AllowedGapHours,
		AllowedGapMs:       s.AllowedGap.Milliseconds(),
		WarningWindowHours: s.WarningWindowHours,
		Counts:             make([]dayCount, 0, len(s.CountsByISO)),
		Has:                make([]string, 0, len(s.HasByISO)),
		Last:               make([]dayLast, 0, len(s.LastTsByISO)),
	}
	for iso, n := range s.CountsByISO {
		shape.Counts = append(shape.Counts, dayCount{ISO: iso, Count: n})
	}
	sort.Slice(shape.Counts, func(i, j int) bool { return shape.Counts[i].ISO < shape.Counts[j].ISO })
	for iso := range s.HasByISO {
		shape.Has = append(shape.Has, iso)
	}
	sort.Strings(shape.Has)
	for iso, ts := range s.LastTsByISO {
		shape.Last = append(shape.Last, dayLast{ISO: iso, Ms: ts.UnixMilli()})
	}
	sort.Slice(shape.Last, func(i, j int) bool { return shape.Last[i].ISO < shape.Last[j].ISO })
	if s.HasLast() {
		ms := s.LastTs.UnixMilli()
		shape.LastTs = &ms
	}
	return shape
}
