// Package apperr holds sentinel errors shared by the service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNoTitle       = errors.New("habit title is required")
	ErrGroupMissing  = errors.New("habit group is required")
)
