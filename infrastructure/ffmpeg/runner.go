package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// CommandResult holds what a finished command left behind
type CommandResult struct {
	ExitCode int
	Stderr   string
}

// CommandRunner defines the interface for running external commands
// This allows mocking exec.Command in tests
type CommandRunner interface {
	// Run executes a command, passing each stdout line to onStdout when it is not nil.
	// ExitCode is -1 when the process could not be started or was killed.
	Run(ctx context.Context, onStdout func(line string), name string, args ...string) (CommandResult, error)
	// Output executes a command and returns its stdout
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the production implementation using os/exec.
// Cancelling ctx kills the whole process group on unix.
type ExecCommandRunner struct{}

// Run executes a command and streams its stdout
func (r *ExecCommandRunner) Run(ctx context.Context, onStdout func(line string), name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	configureProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}

	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1}, err
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onStdout != nil {
			onStdout(scanner.Text())
		}
	}
	// Keep draining so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, stdout)

	err = cmd.Wait()
	result := CommandResult{Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Output executes a command and returns its output
func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	configureProcessGroup(cmd)
	return cmd.Output()
}
