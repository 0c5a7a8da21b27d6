// internal/api/handlers/task_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/talpslabs/talps/internal/manager"
	"github.com/talpslabs/talps/internal/models"
	"github.com/talpslabs/talps/internal/storage/leveldb"
)

type TaskHandler struct {
	manager *manager.TaskManager
	journal *leveldb.Client
}

func NewTaskHandler(m *manager.TaskManager, journal *leveldb.Client) *TaskHandler {
	return &TaskHandler{
		manager: m,
		journal: journal,
	}
}

// SubmitTask registers a new task from the request body.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var spec models.TaskSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateTaskSpec(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.manager.Submit(spec)
	if err != nil {
		var stateErr *manager.StateError
		if errors.As(err, &stateErr) {
			http.Error(w, stateErr.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "failed to submit task", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(struct {
		Message string        `json:"message"`
		ID      models.TaskID `json:"id"`
	}{
		Message: "Task queued successfully",
		ID:      id,
	})
}

// ListTasks returns a snapshot of all live tasks ordered by id.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.manager.Tasks())
}

// GetTask returns one live task. Finished tasks are gone from the registry,
// so they answer 404 here; their record lives in the history.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	task, ok := h.manager.Task(models.TaskID(id))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(task)
}

// GetHistory returns the journal of finished tasks.
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.journal.History()
	if err != nil {
		http.Error(w, "failed to read task history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.TaskRecord{}
	}
	json.NewEncoder(w).Encode(records)
}

func validateTaskSpec(spec *models.TaskSpec) error {
	if spec.Name == "" {
		return errors.New("task name is required")
	}
	if spec.Mode != "" && spec.Mode != models.TaskModeExec && spec.Mode != models.TaskModeStub {
		return errors.New("task mode must be EXEC or STUB")
	}
	if spec.Mode != models.TaskModeStub && spec.Command == "" {
		return errors.New("task command is required")
	}
	return nil
}
