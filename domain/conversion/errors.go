package conversion

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrDuplicateTask is returned when an input path is already registered
	ErrDuplicateTask = errors.New("input already in task list")

	// ErrRunInProgress is returned for operations that are not allowed while a run is active
	ErrRunInProgress = errors.New("conversion run in progress")

	// ErrNoTasks is returned when starting a run with an empty task list
	ErrNoTasks = errors.New("no files to convert")

	// ErrInvalidTransition is returned when a task status change would break the lifecycle
	ErrInvalidTransition = errors.New("invalid task transition")
)

// DiagnosticLimit is the number of characters of tool error output kept for display
const DiagnosticLimit = 200

// FileAccessError reports a source file that cannot be read or an output location that
// cannot be created
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// ExternalToolError reports a non-zero exit or a launch failure of an external command.
// ExitCode is -1 when the process never started.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s failed to start: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Diagnostic())
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// Launched reports whether the process ran at all
func (e *ExternalToolError) Launched() bool {
	return e.ExitCode >= 0
}

// Diagnostic returns the first DiagnosticLimit characters of the tool's error output
func (e *ExternalToolError) Diagnostic() string {
	return Truncate(strings.TrimSpace(e.Stderr), DiagnosticLimit)
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
