package events

import (
	"time"

	"github.com/floweriwe/stagehand/internal/task"
)

// Event is the base interface for everything published on the bus.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants.
const (
	TopicTask  = "task"
	TopicQueue = "queue"
)

// Event type constants.
const (
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeTasksGenerated = "task.generated"
	EventTypeFinding        = "task.finding"
	EventTypeQueueProgress  = "queue.progress"
)

// TaskStartedEvent is published when the loop dispatches a task.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Phase     string
	Priority  task.Priority
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when every action of a task succeeded.
type TaskCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when an action failed and the task was rolled
// back.
type TaskFailedEvent struct {
	ID         string
	Reason     string
	RolledBack bool
	Duration   time.Duration
	Timestamp  time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TasksGeneratedEvent is published when analysis of a finished task
// synthesized follow-up tasks.
type TasksGeneratedEvent struct {
	ID        string // the trigger task
	Generated []string
	Timestamp time.Time
}

func (e TasksGeneratedEvent) EventType() string { return EventTypeTasksGenerated }
func (e TasksGeneratedEvent) TaskID() string    { return e.ID }

// FindingEvent carries one issue or warning extracted from task output.
type FindingEvent struct {
	ID        string
	Severity  string // "issue" or "warning"
	Text      string
	Timestamp time.Time
}

func (e FindingEvent) EventType() string { return EventTypeFinding }
func (e FindingEvent) TaskID() string    { return e.ID }

// QueueProgressEvent is published after every iteration with the store's
// current shape.
type QueueProgressEvent struct {
	Total     int
	Completed int
	Failed    int
	Pending   int
	Blocked   int
	Skipped   int
	Progress  float64
	Timestamp time.Time
}

func (e QueueProgressEvent) EventType() string { return EventTypeQueueProgress }
func (e QueueProgressEvent) TaskID() string    { return "" }
