// Package storage defines the vault file-system abstraction.
package storage

import "github.com/quipex/habit-button/internal/models"

// Provider is the interface for vault file operations. All paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns every .md document under dir ("" for the whole vault).
	List(dir string) ([]models.Document, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Create writes a new file and fails with apperr.ErrAlreadyExists if one is present.
	Create(path string, content []byte) error
	// Append adds content to the end of an existing file.
	Append(path string, content []byte) error
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
}
