// internal/api/handlers/manager_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/talpslabs/talps/internal/manager"
)

type ManagerHandler struct {
	manager *manager.TaskManager
}

func NewManagerHandler(m *manager.TaskManager) *ManagerHandler {
	return &ManagerHandler{
		manager: m,
	}
}

// Run starts task execution.
func (h *ManagerHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.manager.Run(), "Task manager running")
}

// Stop pauses task execution; queued tasks stay queued.
func (h *ManagerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.manager.Stop(), "Task manager stopped")
}

// Shutdown retires the manager and blocks until every worker has exited.
// The join can outlast the server's write deadline, so the deadline is
// lifted for this connection to keep the response deliverable.
func (h *ManagerHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("could not lift write deadline for shutdown: %v", err)
	}
	h.respond(w, h.manager.Shutdown(), "Task manager shut down")
}

// GetStatus returns a snapshot of the manager.
func (h *ManagerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.manager.Status())
}

func (h *ManagerHandler) respond(w http.ResponseWriter, err error, message string) {
	if err != nil {
		var stateErr *manager.StateError
		if errors.As(err, &stateErr) {
			http.Error(w, stateErr.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "task manager error", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
	})
}
