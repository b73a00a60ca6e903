// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Result holds the captured streams of a finished command.
type Result struct {
	// Stdout is everything the command wrote to standard output.
	Stdout []byte
	// Stderr is everything the command wrote to standard error.
	Stderr []byte
	// ExitCode is the process exit status, or -1 if it did not exit normally.
	ExitCode int
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command to completion and returns its captured output.
	// The working directory is set to workDir if non-empty.
	// A non-nil Result is returned whenever the process started, even if it
	// exited with a non-zero status.
	Run(ctx context.Context, workDir string, name string, args ...string) (*Result, error)
}
