// internal/manager/manager.go
package manager

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/talpslabs/talps/internal/events"
	"github.com/talpslabs/talps/internal/models"
	"github.com/talpslabs/talps/internal/queue"
)

// Runner executes one task to completion. Execution is never preempted:
// stopping or shutting down the manager lets in-flight tasks finish.
type Runner interface {
	Run(task *models.Task) error
}

// TaskManager owns the task registry, the ready queue and the worker pool,
// and coordinates them through a single condition variable.
//
// Workers park on the condition variable whenever the manager is STOPPED,
// or RUNNING with an empty queue. Every state transition broadcasts; every
// enqueue signals. A worker that wakes up re-checks the predicate before
// touching the queue, so a wakeup can never be lost and SHUTDOWN is
// observed even by workers that were blocked waiting for work.
type TaskManager struct {
	id      string
	workers int

	mu     sync.Mutex
	cond   *sync.Cond
	status models.ManagerStatus

	reg    *registry
	ready  *queue.ReadyQueue
	runner Runner
	bus    *events.Bus

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// New creates a task manager in the STOPPED state and spawns its worker
// pool. Workers stay parked until Run is called; tasks may be submitted
// right away.
func New(workers int, r Runner, bus *events.Bus) *TaskManager {
	if workers < 1 {
		workers = 1
	}
	m := &TaskManager{
		id:      uuid.New().String(),
		workers: workers,
		status:  models.ManagerStopped,
		reg:     newRegistry(),
		ready:   queue.NewReadyQueue(),
		runner:  r,
		bus:     bus,
	}
	m.cond = sync.NewCond(&m.mu)

	log.Printf("Starting task manager %s with %d workers", m.id, workers)
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
	return m
}

// ID returns the unique identifier of this manager instance.
func (m *TaskManager) ID() string {
	return m.id
}

// Submit registers a task. Its dependency edges are resolved and wired in
// one registry critical section; if every dependency is already satisfied
// the task goes straight to the ready queue. Returns the assigned id, or a
// StateError if the manager has been shut down.
func (m *TaskManager) Submit(spec models.TaskSpec) (models.TaskID, error) {
	m.mu.Lock()
	if m.status == models.ManagerShutdown {
		m.mu.Unlock()
		return 0, &StateError{Op: "submit task", Status: models.ManagerShutdown}
	}
	m.mu.Unlock()

	task := models.NewTask(models.TaskID(m.nextID.Add(1)), spec)
	ready := m.reg.add(task)

	// Published before the enqueue: a worker can only start the task after
	// the push, so subscribers never see it start before it was submitted.
	log.Printf("submitted task %d (%s), deps=%v ready=%t", task.ID, task.Name, task.Deps, ready)
	m.bus.Publish(events.TopicTask, events.TaskSubmittedEvent{
		ID:        task.ID,
		Name:      task.Name,
		Deps:      task.Deps,
		Ready:     ready,
		Timestamp: time.Now(),
	})
	if ready {
		m.enqueue(task)
	}
	return task.ID, nil
}

// Run moves the manager to RUNNING and wakes every worker. Calling Run on a
// manager that is already RUNNING is a no-op.
func (m *TaskManager) Run() error {
	m.mu.Lock()
	switch m.status {
	case models.ManagerRunning:
		m.mu.Unlock()
		log.Printf("task manager %s is already running", m.id)
		return nil
	case models.ManagerShutdown:
		m.mu.Unlock()
		return &StateError{Op: "run", Status: models.ManagerShutdown}
	}
	m.status = models.ManagerRunning
	m.cond.Broadcast()
	m.mu.Unlock()

	log.Printf("task manager %s is running", m.id)
	m.publishState(models.ManagerStopped, models.ManagerRunning)
	return nil
}

// Stop moves the manager back to STOPPED. Workers finish the task they are
// on and park; queued tasks stay queued. Calling Stop on a manager that is
// already STOPPED is a no-op.
func (m *TaskManager) Stop() error {
	m.mu.Lock()
	switch m.status {
	case models.ManagerStopped:
		m.mu.Unlock()
		log.Printf("task manager %s is already stopped", m.id)
		return nil
	case models.ManagerShutdown:
		m.mu.Unlock()
		return &StateError{Op: "stop", Status: models.ManagerShutdown}
	}
	m.status = models.ManagerStopped
	m.cond.Broadcast()
	m.mu.Unlock()

	log.Printf("task manager %s is stopped", m.id)
	m.publishState(models.ManagerRunning, models.ManagerStopped)
	return nil
}

// Shutdown moves the manager to its terminal state and blocks until every
// worker has exited. In-flight tasks run to completion; tasks still queued
// or waiting on dependencies are never started. Returns a StateError if the
// manager is already shut down.
func (m *TaskManager) Shutdown() error {
	m.mu.Lock()
	if m.status == models.ManagerShutdown {
		m.mu.Unlock()
		return &StateError{Op: "shutdown", Status: models.ManagerShutdown}
	}
	prev := m.status
	m.status = models.ManagerShutdown
	m.cond.Broadcast()
	m.mu.Unlock()

	log.Printf("shutting down task manager %s, waiting for workers", m.id)
	m.wg.Wait()
	log.Printf("task manager %s shut down", m.id)
	m.publishState(prev, models.ManagerShutdown)
	return nil
}

// Tasks returns a snapshot of all live tasks ordered by ascending id.
func (m *TaskManager) Tasks() []models.Task {
	return m.reg.snapshot()
}

// Task returns a snapshot of one live task. It reports false once the task
// has finished or if the id was never assigned.
func (m *TaskManager) Task(id models.TaskID) (models.Task, bool) {
	return m.reg.get(id)
}

// Status returns a point-in-time snapshot of the manager.
func (m *TaskManager) Status() models.ManagerState {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()

	return models.ManagerState{
		ID:         m.id,
		Status:     status,
		Workers:    m.workers,
		Pending:    m.reg.size(),
		QueueDepth: m.ready.Len(),
		UpdatedAt:  time.Now(),
	}
}

// enqueue pushes a ready task and wakes one worker. The push happens before
// the signal so a woken worker always finds the task.
func (m *TaskManager) enqueue(task *models.Task) {
	m.ready.Push(task)
	m.mu.Lock()
	m.cond.Signal()
	m.mu.Unlock()
}

// workerLoop is the body of one pool worker. It sleeps while the manager is
// STOPPED or there is nothing to do, runs ready tasks while the manager is
// RUNNING, and exits as soon as it observes SHUTDOWN, without draining the
// queue.
func (m *TaskManager) workerLoop() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for m.status == models.ManagerStopped ||
			(m.status == models.ManagerRunning && m.ready.Len() == 0) {
			m.cond.Wait()
		}
		if m.status == models.ManagerShutdown {
			m.mu.Unlock()
			return
		}
		task, ok := m.ready.TryPop()
		m.mu.Unlock()
		if !ok {
			continue
		}
		m.execute(task)
	}
}

// execute runs one task and propagates its completion. A failure marks the
// task FAILED and still releases its dependents; it never takes the worker
// down.
func (m *TaskManager) execute(task *models.Task) {
	snap := m.reg.markRunning(task)
	log.Printf("task %d (%s) is running", snap.ID, snap.Name)
	m.bus.Publish(events.TopicTask, events.TaskStartedEvent{
		ID:        snap.ID,
		Name:      snap.Name,
		Timestamp: time.Now(),
	})

	start := time.Now()
	err := m.runner.Run(&snap)
	elapsed := time.Since(start)

	status := models.TaskStatusCompleted
	if err != nil {
		status = models.TaskStatusFailed
		log.Printf("task %d (%s) failed after %s: %v", snap.ID, snap.Name, elapsed, err)
	} else {
		log.Printf("task %d (%s) completed in %s", snap.ID, snap.Name, elapsed)
	}

	released := m.reg.complete(task, status)

	// The terminal event goes out before the released dependents are pushed,
	// so subscribers see a task finish before anything it unblocked starts.
	if err != nil {
		m.bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID:        snap.ID,
			Name:      snap.Name,
			Err:       err,
			Duration:  elapsed,
			Timestamp: time.Now(),
		})
	} else {
		m.bus.Publish(events.TopicTask, events.TaskCompletedEvent{
			ID:        snap.ID,
			Name:      snap.Name,
			Duration:  elapsed,
			Timestamp: time.Now(),
		})
	}
	for _, next := range released {
		m.enqueue(next)
	}
}

func (m *TaskManager) publishState(from, to models.ManagerStatus) {
	m.bus.Publish(events.TopicManager, events.ManagerStateEvent{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	})
}
