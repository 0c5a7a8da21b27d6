// internal/queue/queue.go
package queue

import (
	"sync"

	"github.com/talpslabs/talps/internal/models"
)

// ReadyQueue is the FIFO of tasks whose dependencies are all satisfied,
// shared between the producers (submission, dependency release) and the
// worker pool. It is safe for concurrent use.
//
// The queue itself never blocks: waiting for work is the manager's job,
// which couples queue depth with its lifecycle state. TryPop exists so a
// worker can check for work and consume it without ever parking inside
// the queue.
type ReadyQueue struct {
	mu    sync.Mutex
	items []*models.Task
}

func NewReadyQueue() *ReadyQueue {
	return &ReadyQueue{}
}

// Push appends a task to the tail of the queue.
func (q *ReadyQueue) Push(task *models.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, task)
}

// TryPop removes and returns the task at the head of the queue. It returns
// false instead of blocking when the queue is empty.
func (q *ReadyQueue) TryPop() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	task := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return task, true
}

// Len reports how many tasks are waiting.
func (q *ReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the ids of the queued tasks in FIFO order.
func (q *ReadyQueue) Snapshot() []models.TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]models.TaskID, len(q.items))
	for i, task := range q.items {
		ids[i] = task.ID
	}
	return ids
}
