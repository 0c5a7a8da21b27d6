// internal/events/types.go
package events

import (
	"time"

	"github.com/talpslabs/talps/internal/models"
)

// Topics published by the task manager.
const (
	TopicTask    = "task"
	TopicManager = "manager"
)

// Event is anything the manager announces on the bus.
type Event interface {
	EventType() string
}

// TaskSubmittedEvent fires when a task enters the registry. Ready reports
// whether it went straight to the ready queue.
type TaskSubmittedEvent struct {
	ID        models.TaskID
	Name      string
	Deps      []models.TaskID
	Ready     bool
	Timestamp time.Time
}

func (e TaskSubmittedEvent) EventType() string { return "task.submitted" }

// TaskStartedEvent fires when a worker picks a task up.
type TaskStartedEvent struct {
	ID        models.TaskID
	Name      string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return "task.started" }

// TaskCompletedEvent fires when a task finishes successfully.
type TaskCompletedEvent struct {
	ID        models.TaskID
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return "task.completed" }

// TaskFailedEvent fires when a task finishes with an error. Its dependents
// are released all the same.
type TaskFailedEvent struct {
	ID        models.TaskID
	Name      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return "task.failed" }

// ManagerStateEvent fires on every lifecycle transition.
type ManagerStateEvent struct {
	From      models.ManagerStatus
	To        models.ManagerStatus
	Timestamp time.Time
}

func (e ManagerStateEvent) EventType() string { return "manager.state" }
