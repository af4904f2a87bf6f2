package api

import (
	"sort"
	"time"

	"github.com/quipex/habit-button/internal/registry"
	"github.com/quipex/habit-button/internal/widget"
)

// MountRequest is the request body for mounting a habit or group block.
type MountRequest struct {
	Source     string `json:"source" example:"title: Walk\ngroup: morning" validate:"required"`
	SourcePath string `json:"sourcePath,omitempty" example:"notes/habits.md"`
}

// HabitView is the rendered widget (aliased from the widget layer).
type HabitView = widget.View

// WidgetListResponse lists mounted widget IDs.
type WidgetListResponse struct {
	IDs []string `json:"ids" validate:"required"`
}

// RecordItem is a registry record in API responses.
type RecordItem struct {
	HabitKey   string     `json:"habitKey" example:"morning-walk" validate:"required"`
	Title      string     `json:"title" example:"Morning walk" validate:"required"`
	Group      string     `json:"group,omitempty" example:"morning"`
	SourcePath string     `json:"sourcePath" example:"notes/habits.md" validate:"required"`
	Streak     int        `json:"streak" example:"3"`
	LastEntry  *time.Time `json:"lastEntry,omitempty"`
	Days       int        `json:"days" example:"12"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// RegistryResponse wraps registry listings.
type RegistryResponse struct {
	Records []RecordItem `json:"records" validate:"required"`
	Total   int          `json:"total" example:"4" validate:"required"`
}

// DuplicateItem is a habit key declared by more than one record.
type DuplicateItem struct {
	HabitKey string       `json:"habitKey" validate:"required"`
	Records  []RecordItem `json:"records" validate:"required"`
}

// DuplicatesResponse wraps duplicate listings.
type DuplicatesResponse struct {
	Duplicates []DuplicateItem `json:"duplicates" validate:"required"`
}

func toRecordItem(rec registry.Record) RecordItem {
	item := RecordItem{
		HabitKey:   rec.HabitKey,
		Title:      rec.Options.DisplayTitle,
		Group:      rec.Group,
		SourcePath: rec.SourcePath,
		UpdatedAt:  rec.UpdatedAt,
	}
	if rec.Stats != nil {
		item.Streak = rec.Stats.Streak
		item.Days = len(rec.Stats.HasByISO)
		if rec.Stats.HasLast() {
			last := rec.Stats.LastTs
			item.LastEntry = &last
		}
	}
	return item
}

func toRecordItems(recs []registry.Record) []RecordItem {
	items := make([]RecordItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toRecordItem(rec))
	}
	return items
}

func toDuplicateItems(dups map[string][]registry.Record) []DuplicateItem {
	items := make([]DuplicateItem, 0, len(dups))
	for key, recs := range dups {
		items = append(items, DuplicateItem{HabitKey: key, Records: toRecordItems(recs)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].HabitKey < items[j].HabitKey })
	return items
}
