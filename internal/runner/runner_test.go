package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/talpslabs/talps/internal/models"
)

func execTask(id models.TaskID, name, command string) *models.Task {
	return models.NewTask(id, models.TaskSpec{Name: name, Command: command})
}

func TestRunCapturesBothStreams(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	task := execTask(1, "greeter", "echo out; echo err 1>&2")
	if err := r.Run(task); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	stdout, err := os.ReadFile(filepath.Join(dir, "greeter_STDOUT"))
	if err != nil {
		t.Fatalf("reading stdout sink: %v", err)
	}
	if string(stdout) != "out\n" {
		t.Errorf("stdout sink = %q, want %q", stdout, "out\n")
	}

	stderr, err := os.ReadFile(filepath.Join(dir, "greeter_ERR"))
	if err != nil {
		t.Fatalf("reading stderr sink: %v", err)
	}
	if string(stderr) != "err\n" {
		t.Errorf("stderr sink = %q, want %q", stderr, "err\n")
	}
}

func TestRunCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	r := NewExecRunner(dir)

	if err := r.Run(execTask(1, "mk", "true")); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mk_STDOUT")); err != nil {
		t.Errorf("stdout sink missing: %v", err)
	}
}

// A task that writes far more than a pipe buffer to both streams must not
// wedge against the harness.
func TestRunLargeOutputBothStreams(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	const size = 262144 // 4x a typical 64KiB pipe buffer
	command := "head -c 262144 /dev/zero; head -c 262144 /dev/zero 1>&2"
	if err := r.Run(execTask(1, "chatty", command)); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	for _, sink := range []string{"chatty_STDOUT", "chatty_ERR"} {
		info, err := os.Stat(filepath.Join(dir, sink))
		if err != nil {
			t.Fatalf("stat %s: %v", sink, err)
		}
		if info.Size() != size {
			t.Errorf("%s size = %d, want %d", sink, info.Size(), size)
		}
	}
}

func TestRunReportsExitCode(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantCode int
	}{
		{"explicit exit", "exit 3", 3},
		{"missing binary", "definitely-not-a-command-2417", 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewExecRunner(t.TempDir())
			err := r.Run(execTask(7, "bad", tt.command))
			if err == nil {
				t.Fatal("Run() succeeded, want ExecutionError")
			}

			var execErr *ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("Run() error = %v, want ExecutionError", err)
			}
			if execErr.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", execErr.ExitCode, tt.wantCode)
			}
			if execErr.TaskID != 7 || execErr.TaskName != "bad" {
				t.Errorf("error identifies task %d (%s), want 7 (bad)", execErr.TaskID, execErr.TaskName)
			}
			if !strings.Contains(execErr.Error(), "exited with code") {
				t.Errorf("Error() = %q, want exit code message", execErr.Error())
			}
		})
	}
}

func TestRunStillWritesSinksOnFailure(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	err := r.Run(execTask(2, "partial", "echo some progress; exit 9"))
	if err == nil {
		t.Fatal("Run() succeeded, want error")
	}

	stdout, readErr := os.ReadFile(filepath.Join(dir, "partial_STDOUT"))
	if readErr != nil {
		t.Fatalf("reading stdout sink: %v", readErr)
	}
	if string(stdout) != "some progress\n" {
		t.Errorf("stdout sink = %q, want %q", stdout, "some progress\n")
	}
}

// A process that exits cleanly while its output cannot be captured is still
// an execution failure, and callers matching on ExecutionError must see it.
func TestRunWrapsSinkFailures(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	// Occupy the stdout sink path with a directory so the drain cannot
	// create its file even though the command itself succeeds.
	if err := os.Mkdir(filepath.Join(dir, "clash_STDOUT"), 0o755); err != nil {
		t.Fatalf("occupying sink path: %v", err)
	}

	err := r.Run(execTask(3, "clash", "true"))
	if err == nil {
		t.Fatal("Run() succeeded with an unwritable sink")
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Run() error = %v, want ExecutionError", err)
	}
	if execErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 (the process exited cleanly)", execErr.ExitCode)
	}
	if execErr.TaskID != 3 || execErr.TaskName != "clash" {
		t.Errorf("error identifies task %d (%s), want 3 (clash)", execErr.TaskID, execErr.TaskName)
	}
	if !strings.Contains(execErr.Error(), "clash_STDOUT") {
		t.Errorf("Error() = %q, want the failing sink named", execErr.Error())
	}
}

func TestRunWrapsPipeFailures(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		t.Skipf("cannot read fd limit: %v", err)
	}
	open, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot count open fds: %v", err)
	}

	// With no headroom for new descriptors the pipes cannot be created.
	low := syscall.Rlimit{Cur: uint64(len(open)), Max: lim.Max}
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &low); err != nil {
		t.Skipf("cannot lower fd limit: %v", err)
	}
	runErr := r.Run(execTask(6, "starved", "echo hi"))
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		t.Fatalf("restoring fd limit: %v", err)
	}

	if runErr == nil {
		t.Fatal("Run() succeeded with no file descriptors to spare")
	}
	var execErr *ExecutionError
	if !errors.As(runErr, &execErr) {
		t.Fatalf("Run() error = %v, want ExecutionError", runErr)
	}
	if execErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", execErr.ExitCode)
	}
	if execErr.TaskID != 6 || execErr.TaskName != "starved" {
		t.Errorf("error identifies task %d (%s), want 6 (starved)", execErr.TaskID, execErr.TaskName)
	}
}

func TestStubWritesDumpAtConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	path := filepath.Join(dir, "dumps", "outline.txt")
	task := models.NewTask(4, models.TaskSpec{
		Name:       "outline",
		Command:    "echo never runs",
		Mode:       models.TaskModeStub,
		OutputPath: path,
	})

	if err := r.Run(task); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stub output: %v", err)
	}
	for _, want := range []string{"id: 4", `name: "outline"`, `command: "echo never runs"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("stub dump = %q, missing %q", data, want)
		}
	}

	// The command must not have produced sink files.
	if _, err := os.Stat(filepath.Join(dir, "outline_STDOUT")); !os.IsNotExist(err) {
		t.Error("stub task produced a stdout sink")
	}
}

func TestStubDefaultsToOutputDir(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir)

	task := models.NewTask(5, models.TaskSpec{Name: "plain-stub", Mode: models.TaskModeStub})
	if err := r.Run(task); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "plain-stub")); err != nil {
		t.Errorf("default stub output missing: %v", err)
	}
}
