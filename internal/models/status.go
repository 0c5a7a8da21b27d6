// internal/models/status.go
package models

import (
	"time"
)

// ManagerStatus is the lifecycle state of the task manager.
//
// The manager starts out STOPPED, moves freely between STOPPED and RUNNING,
// and ends in SHUTDOWN. SHUTDOWN is terminal: no transition leaves it.
type ManagerStatus string

const (
	ManagerStopped  ManagerStatus = "STOPPED"
	ManagerRunning  ManagerStatus = "RUNNING"
	ManagerShutdown ManagerStatus = "SHUTDOWN"
)

// ManagerState represents the current state of the entire manager
type ManagerState struct {
	ID         string        `json:"id"`         // unique identifier of this manager instance
	Status     ManagerStatus `json:"status"`     // current lifecycle state
	Workers    int           `json:"workers"`    // size of the worker pool
	Pending    int           `json:"pending"`    // tasks registered and not yet finished
	QueueDepth int           `json:"queueDepth"` // ready tasks waiting for a worker
	UpdatedAt  time.Time     `json:"updatedAt"`  // when this snapshot was taken
}
