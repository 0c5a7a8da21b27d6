// internal/api/routes/routes.go
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/talpslabs/talps/internal/api/handlers"
	"github.com/talpslabs/talps/internal/manager"
	"github.com/talpslabs/talps/internal/storage/leveldb"
)

func SetupRouter(m *manager.TaskManager, journal *leveldb.Client, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(m, journal)
	managerHandler := handlers.NewManagerHandler(m)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			// Task endpoints
			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", taskHandler.SubmitTask)
				r.Get("/", taskHandler.ListTasks)
				r.Get("/history", taskHandler.GetHistory)
				r.Get("/{id}", taskHandler.GetTask)
			})

			// Manager lifecycle endpoints
			r.Post("/manager/run", managerHandler.Run)
			r.Post("/manager/stop", managerHandler.Stop)
			r.Get("/manager/status", managerHandler.GetStatus)
		})

		// Shutdown blocks until every worker has joined, however long the
		// drain takes, so it carries no request deadline.
		r.Post("/manager/shutdown", managerHandler.Shutdown)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	return r
}
