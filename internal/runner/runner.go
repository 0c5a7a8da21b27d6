// internal/runner/runner.go
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/talpslabs/talps/internal/models"
	"golang.org/x/sync/errgroup"
)

// ExecutionError reports a task whose process could not be started, exited
// with a non-zero status, or whose output could not be captured. ExitCode is
// -1 when no exit code describes the failure, e.g. the process never spawned
// or it exited cleanly but a sink failed.
type ExecutionError struct {
	TaskID   models.TaskID
	TaskName string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("task %d (%s) exited with code %d", e.TaskID, e.TaskName, e.ExitCode)
	}
	return fmt.Sprintf("task %d (%s) failed: %v", e.TaskID, e.TaskName, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExecRunner realizes tasks as shell commands, capturing each task's output
// streams to <name>_STDOUT and <name>_ERR files in its output directory.
// Stub tasks skip the shell and write a descriptive dump of the task to
// their output path instead.
type ExecRunner struct {
	outputDir string
}

func NewExecRunner(outputDir string) *ExecRunner {
	return &ExecRunner{outputDir: outputDir}
}

// Run executes one task to completion and blocks until its process and
// both output sinks are finished.
func (r *ExecRunner) Run(task *models.Task) error {
	if task.Mode == models.TaskModeStub {
		return r.runStub(task)
	}
	return r.runExec(task)
}

func (r *ExecRunner) runStub(task *models.Task) error {
	path := task.OutputPath
	if path == "" {
		path = filepath.Join(r.outputDir, task.Name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(task.Describe()+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write stub output: %w", err)
	}
	return nil
}

func (r *ExecRunner) runExec(task *models.Task) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.Command("sh", "-c", task.Command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: -1, Err: fmt.Errorf("failed to open stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: -1, Err: fmt.Errorf("failed to open stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: -1, Err: err}
	}

	// A child that fills one pipe while we read the other would wedge both
	// sides, so the two streams drain in parallel and Wait runs only after
	// the drains are done.
	var g errgroup.Group
	g.Go(func() error { return r.sink(stdout, task.Name+"_STDOUT") })
	g.Go(func() error { return r.sink(stderr, task.Name+"_ERR") })
	sinkErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: -1, Err: err}
	}
	if sinkErr != nil {
		return &ExecutionError{TaskID: task.ID, TaskName: task.Name, ExitCode: -1, Err: sinkErr}
	}
	return nil
}

// sink streams one pipe into a file in the output directory.
func (r *ExecRunner) sink(src io.Reader, name string) error {
	path := filepath.Join(r.outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
