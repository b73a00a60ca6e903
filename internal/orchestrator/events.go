package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a validation run has started.
	EventRunStarted EventType = "run_started"
	// EventStageStarted indicates a stage has started.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a stage finished.
	EventStageCompleted EventType = "stage_completed"
	// EventStageSkipped indicates a stage was gated off by earlier errors.
	EventStageSkipped EventType = "stage_skipped"
	// EventRunCompleted indicates the run produced a Result.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run aborted with a fatal error.
	EventRunFailed EventType = "run_failed"
)

// Stage names a step of a validation run.
type Stage string

const (
	StageExtract           Stage = "extract"
	StageCompile           Stage = "compile"
	StageAnnotation        Stage = "annotation"
	StageFidelityParams    Stage = "fidelity_params"
	StageSettings          Stage = "settings"
	StageDevFidelityParams Stage = "dev_fidelity_params"
)

// Event represents an event emitted by the orchestrator.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run.
	RunID string
	// Stage is set for stage events.
	Stage Stage
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// ErrorCount is the number of records collected so far.
	ErrorCount int
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the stage or run duration for completion events.
	Duration time.Duration
}
