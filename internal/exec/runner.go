package exec

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output after the process is killed,
// in case a child it spawned still holds the pipes open.
const waitDelay = 2 * time.Second

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command with stdout and stderr captured separately.
// Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cmd.ProcessState == nil {
		// The process never started.
		return nil, err
	}

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, err
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
