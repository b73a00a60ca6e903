package orchestrator

import (
	"time"

	"github.com/ShayCichocki/tfvalidate/internal/tuningfork"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
)

// Result is the outcome of a validation run that was not aborted.
type Result struct {
	// RunID correlates the log lines and events of one run.
	RunID string
	// Archive is the validated archive path or directory.
	Archive string
	// Errors holds every structural problem found.
	Errors *validation.Collector
	// Settings is the decoded settings, or nil if the settings check was
	// skipped or the blob did not parse.
	Settings *tuningfork.Settings
	// EnumSizes is the Annotation enum cardinality vector.
	EnumSizes []int
	// Duplicates lists schema/settings entries that appeared more than once.
	Duplicates []string
	// Skipped lists stages gated off by earlier errors.
	Skipped   []Stage
	StartedAt time.Time
	Duration  time.Duration
}

// Valid reports whether no structural problem was recorded.
func (r *Result) Valid() bool {
	return r.Errors.ErrorCount() == 0
}
