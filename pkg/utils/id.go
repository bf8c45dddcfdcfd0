// Package utils collects small, dependency-free helpers shared across the
// documentation pipeline packages.
package utils

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewTaskID returns a time-sortable, URL-safe identifier for a
// documentation run, following the same "opaque sortable id" convention
// used for run identifiers across the example corpus.
func NewTaskID() string {
	return strings.ToLower(ulid.Make().String())
}

// SafeFilename turns an arbitrary relative path into a string safe to use
// as a single path segment, by replacing path separators and other
// filesystem-unfriendly characters with underscores.
func SafeFilename(relPath string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
	)
	s := r.Replace(relPath)
	if s == "" {
		return "root"
	}
	return s
}
