// cmd/talpsd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talpslabs/talps/internal/api/routes"
	"github.com/talpslabs/talps/internal/config"
	"github.com/talpslabs/talps/internal/events"
	"github.com/talpslabs/talps/internal/journal"
	"github.com/talpslabs/talps/internal/manager"
	"github.com/talpslabs/talps/internal/runner"
	"github.com/talpslabs/talps/internal/storage/leveldb"
)

func main() {
	// Load configuration
	configPath := os.Getenv("TALPS_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Send logs to the configured file, appending across restarts
	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	// Initialize the finished-task journal
	store, err := leveldb.NewClient(cfg.Journal, time.Duration(cfg.Journal.RetentionHours)*time.Hour)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer store.Close()

	// Event bus, with the journal recorder listening on it
	bus := events.NewBus()
	recorder := journal.NewRecorder(store, bus)

	// Task runner and manager
	execRunner := runner.NewExecRunner(cfg.Runner.OutputDir)
	mgr := manager.New(cfg.Worker.Workers, execRunner, bus)

	// HTTP API
	router := routes.SetupRouter(mgr, store, 30*time.Second)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("talpsd listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Printf("Received shutdown signal: %v", sig)

	// Retire the manager first so in-flight tasks finish
	if err := mgr.Shutdown(); err != nil {
		log.Printf("Error during manager shutdown: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Let the journal drain before the store closes
	bus.Close()
	recorder.Wait()

	log.Println("talpsd shutdown complete")
}
