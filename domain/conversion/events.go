package conversion

import "time"

// EventType classifies messages emitted during a run
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventTaskStarted   EventType = "task_started"
	EventTaskProgress  EventType = "task_progress"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventRunFinished   EventType = "run_finished"
)

// Event is one entry in the run's event stream.
// TaskID is only meaningful for task-level events; Succeeded and Failed only for RunFinished.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"runId"`
	Type      EventType `json:"type"`
	TaskID    TaskID    `json:"taskId"`
	Percent   int       `json:"percent,omitempty"`
	Message   string    `json:"message,omitempty"`
	Total     int       `json:"total,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
}

// IsTaskEvent returns true for events scoped to a single task
func (e Event) IsTaskEvent() bool {
	switch e.Type {
	case EventTaskStarted, EventTaskProgress, EventTaskCompleted, EventTaskFailed:
		return true
	default:
		return false
	}
}

// Listener receives run events. HandleEvent is called synchronously from the publishing
// goroutine and must return quickly.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

// HandleEvent calls f(e)
func (f ListenerFunc) HandleEvent(e Event) {
	f(e)
}
