package group

import (
	"fmt"
	"strings"

	"github.com/quipex/habit-button/internal/habit"
)

// BlockOptions are the fields of a habit-group block.
type BlockOptions struct {
	Title           string
	Group           string
	HabitsLocations []string
	EagerScan       bool
	Border          *bool
}

// ParseBlock decodes the YAML body of a habit-group block. habitsLocations
// may be a single string or a list.
func ParseBlock(source string) (BlockOptions, error) {
	fields, err := habit.DecodeFields(source)
	if err != nil {
		return BlockOptions{}, err
	}
	var out BlockOptions
	if s, ok := fields["title"].(string); ok {
		out.Title = s
	}
	if s, ok := fields["group"].(string); ok {
		out.Group = s
	}
	if b, ok := fields["eagerScan"].(bool); ok {
		out.EagerScan = b
	}
	if b, ok := fields["border"].(bool); ok {
		out.Border = &b
	}
	switch v := fields["habitsLocations"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out.HabitsLocations = []string{s}
		}
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out.HabitsLocations = append(out.HabitsLocations, s)
			}
		}
	}
	return out, nil
}
