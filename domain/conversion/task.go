package conversion

import (
	"fmt"
	"time"
)

// TaskID identifies a task by its position in the registry
type TaskID int

// Status is the lifecycle state of a conversion task
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true for completed and failed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CancelledMessage is recorded on tasks that never ran or were killed by a stop request
const CancelledMessage = "cancelled"

// Task represents a single source-file-to-destination-file conversion
type Task struct {
	ID           TaskID
	InputPath    string
	OutputPath   string
	Status       Status
	Progress     int
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
	FileSize     int64
	Warnings     []string
}

// NewTask creates a pending task whose output sits beside the input with the default extension
func NewTask(id TaskID, inputPath string, fileSize int64) *Task {
	return &Task{
		ID:         id,
		InputPath:  inputPath,
		OutputPath: OutputPathFor(inputPath, "", DefaultFormat.Extension()),
		Status:     StatusPending,
		FileSize:   fileSize,
	}
}

// Start moves a pending task to converting
func (t *Task) Start(now time.Time) error {
	if t.Status != StatusPending {
		return t.transitionError(StatusConverting)
	}
	t.Status = StatusConverting
	t.StartTime = now
	t.Progress = 0
	return nil
}

// ReportProgress records a new percentage while converting.
// Values that would move progress backwards are ignored and 100 is reserved for Complete.
// It returns true when the stored progress changed.
func (t *Task) ReportProgress(percent int) bool {
	if t.Status != StatusConverting {
		return false
	}
	if percent > 99 {
		percent = 99
	}
	if percent <= t.Progress {
		return false
	}
	t.Progress = percent
	return true
}

// Complete marks a converting task as successfully finished
func (t *Task) Complete(now time.Time) error {
	if t.Status != StatusConverting {
		return t.transitionError(StatusCompleted)
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.EndTime = clampEnd(t.StartTime, now)
	return nil
}

// Fail marks a converting task as failed with a message
func (t *Task) Fail(now time.Time, message string) error {
	if t.Status != StatusConverting {
		return t.transitionError(StatusFailed)
	}
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.EndTime = clampEnd(t.StartTime, now)
	return nil
}

// Cancel fails a pending task that was never started
func (t *Task) Cancel(now time.Time) error {
	if t.Status != StatusPending {
		return t.transitionError(StatusFailed)
	}
	t.Status = StatusFailed
	t.ErrorMessage = CancelledMessage
	t.StartTime = now
	t.EndTime = now
	return nil
}

// AddWarning records a non-fatal post-processing problem
func (t *Task) AddWarning(msg string) {
	t.Warnings = append(t.Warnings, msg)
}

// Elapsed returns the time spent converting, or zero if the task has not finished
func (t *Task) Elapsed() time.Duration {
	if !t.Status.IsTerminal() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// Clone returns a copy that shares no mutable state with t
func (t *Task) Clone() Task {
	c := *t
	if t.Warnings != nil {
		c.Warnings = append([]string(nil), t.Warnings...)
	}
	return c
}

func (t *Task) transitionError(to Status) error {
	return fmt.Errorf("%w: task %d %s -> %s", ErrInvalidTransition, t.ID, t.Status, to)
}

// clampEnd keeps EndTime >= StartTime even if the wall clock stepped backwards
func clampEnd(start, end time.Time) time.Time {
	if end.Before(start) {
		return start
	}
	return end
}
