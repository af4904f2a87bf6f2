package habit

import (
	"fmt"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Heatmap layouts.
const (
	LayoutGrid = "grid"
	LayoutRow  = "row"
)

// Heatmap size limits. Larger values are clamped during resolution.
const (
	MaxWeeks = 520
	MaxDays  = 3660
)

// Week starts for the grid heatmap.
const (
	WeekStartMonday = "monday"
	WeekStartSunday = "sunday"
)

// Settings holds the plugin-wide defaults that block-local options override.
type Settings struct {
	DailyFolder        string `yaml:"daily_folder"`
	DailyNoteFormat    string `yaml:"daily_note_format"`
	TagPrefix          string `yaml:"tag_prefix"`
	TemplatePath       string `yaml:"template_path"`
	DefaultLayout      string `yaml:"default_layout"`
	Weeks              int    `yaml:"weeks"`
	Days               int    `yaml:"days"`
	CellSize           int    `yaml:"cell_size"`
	CellGap            int    `yaml:"cell_gap"`
	DotSize            int    `yaml:"dot_size"`
	DotGap             int    `yaml:"dot_gap"`
	GracePeriodHours   int    `yaml:"grace_period_hours"`
	WarningWindowHours int    `yaml:"warning_window_hours"`
	WeekStart          string `yaml:"week_start"`
	DefaultBorder      bool   `yaml:"default_border"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		DailyFolder:        "daily",
		DailyNoteFormat:    DefaultDailyNoteFormat,
		TagPrefix:          DefaultTagPrefix,
		DefaultLayout:      LayoutGrid,
		Weeks:              26,
		Days:               240,
		CellSize:           12,
		CellGap:            3,
		DotSize:            8,
		DotGap:             4,
		GracePeriodHours:   24,
		WarningWindowHours: 24,
		WeekStart:          WeekStartMonday,
		DefaultBorder:      true,
	}
}

// Validate rejects enumerations the renderer cannot honour. Numeric fields are
// clamped during resolution instead of being rejected.
func (s *Settings) Validate() error {
	if s.DefaultLayout == "" {
		s.DefaultLayout = LayoutGrid
	}
	if s.WeekStart == "" {
		s.WeekStart = WeekStartMonday
	}
	return validation.ValidateStruct(s,
		validation.Field(&s.DefaultLayout, validation.In(LayoutGrid, LayoutRow)),
		validation.Field(&s.WeekStart, validation.In(WeekStartMonday, WeekStartSunday)),
	)
}

// Number is a block-local numeric override. Set is false when the field was
// absent or not a finite number.
type Number struct {
	Value float64
	Set   bool
}

// BlockOptions are the raw fields of a habit-button block.
type BlockOptions struct {
	Title              string
	Group              string
	Icon               string
	HeatLayout         string
	GracePeriodHours   Number
	WarningWindowHours Number
	Weeks              Number
	Days               Number
	CellSize           Number
	CellGap            Number
	DotSize            Number
	DotGap             Number
	Border             *bool
}

// ParseBlock decodes the YAML body of a habit-button block. Malformed input
// yields empty options together with the decode error so callers can log it.
func ParseBlock(source string) (BlockOptions, error) {
	fields, err := decodeFields(source)
	if err != nil {
		return BlockOptions{}, err
	}
	return BlockOptions{
		Title:              scalarString(fields["title"]),
		Group:              scalarString(fields["group"]),
		Icon:               scalarString(fields["icon"]),
		HeatLayout:         scalarString(fields["heatLayout"]),
		GracePeriodHours:   toNumber(fields["gracePeriodHours"]),
		WarningWindowHours: toNumber(fields["warningWindowHours"]),
		Weeks:              toNumber(fields["weeks"]),
		Days:               toNumber(fields["days"]),
		CellSize:           toNumber(fields["cellSize"]),
		CellGap:            toNumber(fields["cellGap"]),
		DotSize:            toNumber(fields["dotSize"]),
		DotGap:             toNumber(fields["dotGap"]),
		Border:             toBool(fields["border"]),
	}, nil
}

// decodeFields parses a YAML mapping. Empty input is an empty mapping.
func decodeFields(source string) (map[string]any, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("habit: parse block: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// DecodeFields exposes the block decoder for other block kinds.
func DecodeFields(source string) (map[string]any, error) {
	return decodeFields(source)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case int:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	case float64:
		if t == 0 || math.IsNaN(t) {
			return ""
		}
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func toNumber(v any) Number {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case float64:
		f = t
	default:
		return Number{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{Value: f, Set: true}
}

func toBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

// ClampPositive rounds value and clamps it to [min, MaxInt32]. Non-finite
// values fall back.
func ClampPositive(value float64, fallback, min int) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	rounded := math.Round(value)
	if rounded < float64(min) {
		return min
	}
	if rounded > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(rounded)
}

func clampOverride(n Number, fallback, min int) int {
	if !n.Set {
		return fallback
	}
	return ClampPositive(n.Value, fallback, min)
}

// Options is the effective configuration of one rendered habit block.
// It is immutable once resolved for a render pass.
type Options struct {
	Title              string
	DisplayTitle       string
	Group              string
	Icon               string
	GracePeriodHours   int
	WarningWindowHours int
	DailyFolder        string
	DailyNoteFormat    string
	HeatLayout         string
	Weeks              int
	Days               int
	CellSize           int
	CellGap            int
	DotSize            int
	DotGap             int
	TemplatePath       string
	HabitKey           string
	TagPrefix          string
	HabitTag           string
	Border             bool
	WeekStart          string
}

// ResolveOptions merges block-local overrides over settings. ok is false when
// the title is blank or carries no key characters.
func ResolveOptions(raw BlockOptions, settings Settings) (Options, bool) {
	title := NormalizeWhitespace(raw.Title)
	if title == "" {
		return Options{}, false
	}
	key := ToHabitKey(title)
	if key == "" {
		return Options{}, false
	}

	defaults := DefaultSettings()

	layout := settings.DefaultLayout
	switch raw.HeatLayout {
	case LayoutRow, LayoutGrid:
		layout = raw.HeatLayout
	}
	if layout != LayoutRow {
		layout = LayoutGrid
	}

	weekStart := settings.WeekStart
	if weekStart != WeekStartSunday {
		weekStart = WeekStartMonday
	}

	weeks := min(ClampPositive(float64(settings.Weeks), defaults.Weeks, 1), MaxWeeks)
	days := min(ClampPositive(float64(settings.Days), defaults.Days, 1), MaxDays)
	cellSize := ClampPositive(float64(settings.CellSize), defaults.CellSize, 1)
	cellGap := ClampPositive(float64(settings.CellGap), defaults.CellGap, 0)
	dotSize := ClampPositive(float64(settings.DotSize), defaults.DotSize, 1)
	dotGap := ClampPositive(float64(settings.DotGap), defaults.DotGap, 0)
	grace := ClampPositive(float64(settings.GracePeriodHours), defaults.GracePeriodHours, 1)
	warn := ClampPositive(float64(settings.WarningWindowHours), defaults.WarningWindowHours, 0)

	folder := strings.TrimSpace(settings.DailyFolder)
	prefix := NormalizeTagPrefix(settings.TagPrefix)

	border := settings.DefaultBorder
	if raw.Border != nil {
		border = *raw.Border
	}

	return Options{
		Title:              title,
		DisplayTitle:       CapitalizeFirst(title),
		Group:              NormalizeWhitespace(raw.Group),
		Icon:               raw.Icon,
		GracePeriodHours:   clampOverride(raw.GracePeriodHours, grace, 1),
		WarningWindowHours: clampOverride(raw.WarningWindowHours, warn, 0),
		DailyFolder:        TrimSlashes(folder),
		DailyNoteFormat:    NormalizeDailyNoteFormat(settings.DailyNoteFormat, defaults.DailyNoteFormat),
		HeatLayout:         layout,
		Weeks:              min(clampOverride(raw.Weeks, weeks, 1), MaxWeeks),
		Days:               min(clampOverride(raw.Days, days, 1), MaxDays),
		CellSize:           clampOverride(raw.CellSize, cellSize, 1),
		CellGap:            clampOverride(raw.CellGap, cellGap, 0),
		DotSize:            clampOverride(raw.DotSize, dotSize, 1),
		DotGap:             clampOverride(raw.DotGap, dotGap, 0),
		TemplatePath:       strings.TrimSpace(settings.TemplatePath),
		HabitKey:           key,
		TagPrefix:          prefix,
		HabitTag:           TagToken(prefix, key),
		Border:             border,
		WeekStart:          weekStart,
	}, true
}
