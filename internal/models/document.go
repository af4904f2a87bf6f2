// Package models defines the domain types shared across the habit packages.
package models

import (
	"path"
	"strings"
	"time"
)

// Document is a Markdown file in the vault as seen by the corpus scanners.
type Document struct {
	Path      string    `json:"path"` // slash-separated, relative to the vault root
	UpdatedAt time.Time `json:"updated_at"`
}

// Name returns the file name without directory and .md extension.
func (d Document) Name() string {
	return strings.TrimSuffix(path.Base(d.Path), ".md")
}

// PathWithoutExt returns the relative path with the .md extension removed.
func (d Document) PathWithoutExt() string {
	if strings.HasSuffix(strings.ToLower(d.Path), ".md") {
		return d.Path[:len(d.Path)-len(".md")]
	}
	return d.Path
}
