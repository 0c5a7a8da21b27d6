// internal/journal/journal.go
package journal

import (
	"errors"
	"log"

	"github.com/talpslabs/talps/internal/events"
	"github.com/talpslabs/talps/internal/models"
	"github.com/talpslabs/talps/internal/runner"
)

// Store persists terminal task records.
type Store interface {
	Append(record models.TaskRecord) error
}

// Recorder subscribes to task events and journals the terminal ones. It
// drains its subscription on its own goroutine until the bus closes; Wait
// blocks until that drain has finished.
type Recorder struct {
	store Store
	ch    <-chan events.Event
	done  chan struct{}
}

func NewRecorder(store Store, bus *events.Bus) *Recorder {
	r := &Recorder{
		store: store,
		ch:    bus.Subscribe(events.TopicTask, 256),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Wait blocks until the recorder has drained its subscription. Close the
// bus first or Wait never returns.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.ch {
		r.record(ev)
	}
}

func (r *Recorder) record(ev events.Event) {
	var rec models.TaskRecord
	switch e := ev.(type) {
	case events.TaskCompletedEvent:
		rec = models.TaskRecord{
			ID:         e.ID,
			Name:       e.Name,
			Status:     models.TaskStatusCompleted,
			DurationMS: e.Duration.Milliseconds(),
			FinishedAt: e.Timestamp,
		}
	case events.TaskFailedEvent:
		rec = models.TaskRecord{
			ID:         e.ID,
			Name:       e.Name,
			Status:     models.TaskStatusFailed,
			DurationMS: e.Duration.Milliseconds(),
			FinishedAt: e.Timestamp,
		}
		if e.Err != nil {
			rec.Error = e.Err.Error()
			var execErr *runner.ExecutionError
			if errors.As(e.Err, &execErr) && execErr.ExitCode >= 0 {
				code := execErr.ExitCode
				rec.ExitCode = &code
			}
		}
	default:
		return
	}

	if err := r.store.Append(rec); err != nil {
		log.Printf("Warning: failed to journal task %d: %v", rec.ID, err)
	}
}
