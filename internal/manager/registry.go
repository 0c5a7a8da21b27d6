// internal/manager/registry.go
package manager

import (
	"sort"
	"sync"
	"time"

	"github.com/talpslabs/talps/internal/models"
)

// registry is the authoritative map of live tasks, keyed by id, together
// with their dependency bookkeeping. A task stays in the registry from
// submission until its own completion; dependency edges only ever point at
// tasks that are still live. All methods take the registry lock, so a
// dependency can never finish between the existence check of add and the
// registration of the edge.
type registry struct {
	mu    sync.Mutex
	tasks map[models.TaskID]*models.Task
}

func newRegistry() *registry {
	return &registry{
		tasks: make(map[models.TaskID]*models.Task),
	}
}

// add resolves the task's dependencies, wires the reverse edges and inserts
// the task. It reports whether the task is immediately ready to run.
// Dependency ids that are not live (already finished, or never submitted)
// count as satisfied. The task is inserted after its own dependency scan,
// so a task naming itself as a dependency is not blocked by it.
func (r *registry) add(task *models.Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, depID := range task.Deps {
		dep, ok := r.tasks[depID]
		if !ok {
			continue
		}
		dep.Next = append(dep.Next, task.ID)
		task.InDegree++
	}
	r.tasks[task.ID] = task
	return task.InDegree == 0
}

// markRunning flips the task to RUNNING and stamps its start time. It
// returns a copy that may be read freely while the task executes.
func (r *registry) markRunning(task *models.Task) models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	return task.Clone()
}

// complete records the terminal status, removes the task from the registry
// and decrements the in-degree of every dependent. Dependents reaching zero
// are returned so the caller can enqueue them. Failed tasks release their
// dependents exactly like completed ones.
func (r *registry) complete(task *models.Task, status models.TaskStatus) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	task.Status = status
	delete(r.tasks, task.ID)

	var released []*models.Task
	for _, nextID := range task.Next {
		next, ok := r.tasks[nextID]
		if !ok {
			continue
		}
		next.InDegree--
		if next.InDegree == 0 {
			released = append(released, next)
		}
	}
	return released
}

// get returns a copy of one live task. A task that has finished is gone.
func (r *registry) get(id models.TaskID) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return task.Clone(), true
}

// snapshot returns copies of all live tasks ordered by ascending id.
func (r *registry) snapshot() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// size reports the number of live tasks.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
