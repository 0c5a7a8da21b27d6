// internal/models/task.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskID identifies a task within a single manager instance. IDs are
// assigned by the manager, start at 1 and grow monotonically.
type TaskID uint64

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// TaskMode selects how the runner realizes a task
type TaskMode string

const (
	// TaskModeExec runs the task command through the shell.
	TaskModeExec TaskMode = "EXEC"
	// TaskModeStub skips the command and writes a descriptive dump of the
	// task to its output path instead.
	TaskModeStub TaskMode = "STUB"
)

// TaskSpec is a submission request: everything a caller provides to
// register a task. IDs of dependencies may reference tasks that no longer
// exist (or never did); those count as already satisfied.
type TaskSpec struct {
	Name       string   `json:"name"`
	Command    string   `json:"command"`
	Deps       []TaskID `json:"deps,omitempty"`
	Mode       TaskMode `json:"mode,omitempty"`
	OutputPath string   `json:"outputPath,omitempty"`
}

// Task is the registry record for one submitted task. Status, InDegree and
// Next are owned by the registry and mutated only under its lock; the
// remaining fields are fixed at submission.
type Task struct {
	ID          TaskID     `json:"id"`
	Name        string     `json:"name"`
	Command     string     `json:"command"`
	Mode        TaskMode   `json:"mode"`
	OutputPath  string     `json:"outputPath,omitempty"`
	Status      TaskStatus `json:"status"`
	Deps        []TaskID   `json:"deps,omitempty"`
	InDegree    int        `json:"inDegree"`
	Next        []TaskID   `json:"next,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
}

// NewTask creates the registry record for a submission. Dependency
// bookkeeping (InDegree, Next) is filled in by the registry once the
// incoming edges have been resolved.
func NewTask(id TaskID, spec TaskSpec) *Task {
	mode := spec.Mode
	if mode == "" {
		mode = TaskModeExec
	}
	return &Task{
		ID:          id,
		Name:        spec.Name,
		Command:     spec.Command,
		Mode:        mode,
		OutputPath:  spec.OutputPath,
		Status:      TaskStatusPending,
		Deps:        append([]TaskID(nil), spec.Deps...),
		SubmittedAt: time.Now(),
	}
}

// Clone returns a deep copy of the task, safe to read after the registry
// lock has been released.
func (t *Task) Clone() Task {
	c := *t
	c.Deps = append([]TaskID(nil), t.Deps...)
	c.Next = append([]TaskID(nil), t.Next...)
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	return c
}

// Describe renders the one-line dump a stub run writes to its output file.
func (t *Task) Describe() string {
	return fmt.Sprintf("Task{id: %d, name: %q, command: %q, status: %s, deps: %v, inDegree: %d, next: %v}",
		t.ID, t.Name, t.Command, t.Status, t.Deps, t.InDegree, t.Next)
}

// TaskRecord is the terminal journal entry for a finished task.
type TaskRecord struct {
	ID         TaskID     `json:"id"`
	Name       string     `json:"name"`
	Status     TaskStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ExitCode   *int       `json:"exitCode,omitempty"`
	DurationMS int64      `json:"durationMs"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// ToJSON converts the task record to JSON
func (tr *TaskRecord) ToJSON() ([]byte, error) {
	return json.Marshal(tr)
}

// FromJSON populates the task record from JSON
func (tr *TaskRecord) FromJSON(data []byte) error {
	return json.Unmarshal(data, tr)
}
