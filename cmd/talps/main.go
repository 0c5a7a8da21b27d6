// cmd/talps/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/talpslabs/talps/internal/client"
	"github.com/talpslabs/talps/internal/models"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var serverURL string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "talps",
		Short:         "Command-line client for the talps task manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("TALPS_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "base URL of the talpsd API")

	root.AddCommand(
		newSubmitCmd(),
		newRunCmd(),
		newStopCmd(),
		newShutdownCmd(),
		newTasksCmd(),
		newTaskCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newPingCmd(),
	)
	return root
}

func newSubmitCmd() *cobra.Command {
	var (
		name    string
		command string
		deps    []uint
		stub    bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a task, optionally depending on other tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := models.TaskSpec{
				Name:       name,
				Command:    command,
				OutputPath: output,
			}
			if stub {
				spec.Mode = models.TaskModeStub
			}
			for _, dep := range deps {
				spec.Deps = append(spec.Deps, models.TaskID(dep))
			}

			ctx, cancel := timeoutContext()
			defer cancel()
			id, err := client.New(serverURL).SubmitTask(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Printf("submitted task %s (%s)\n", bold(strconv.FormatUint(uint64(id), 10)), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name (required)")
	cmd.Flags().StringVar(&command, "cmd", "", "shell command to run")
	cmd.Flags().UintSliceVar(&deps, "dep", nil, "id of a task this one depends on (repeatable)")
	cmd.Flags().BoolVar(&stub, "stub", false, "write a descriptive dump instead of running the command")
	cmd.Flags().StringVar(&output, "output", "", "output path for stub tasks")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start task execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			if err := client.New(serverURL).Run(ctx); err != nil {
				return err
			}
			fmt.Println(green("task manager is running"))
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Pause task execution, leaving queued tasks in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			if err := client.New(serverURL).Stop(ctx); err != nil {
				return err
			}
			fmt.Println(yellow("task manager is stopped"))
			return nil
		},
	}
}

func newShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Retire the task manager, waiting for in-flight tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			// No timeout: shutdown blocks until in-flight tasks finish.
			if err := client.New(serverURL).Shutdown(context.Background()); err != nil {
				return err
			}
			fmt.Println(red("task manager shut down"))
			return nil
		},
	}
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List live tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			tasks, err := client.New(serverURL).Tasks(ctx)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("no live tasks")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDEPS\tSUBMITTED")
			for _, t := range tasks {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, taskStatusText(t.Status), formatDeps(t), t.SubmittedAt.Format("15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <id>",
		Short: "Show one live task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			ctx, cancel := timeoutContext()
			defer cancel()
			task, err := client.New(serverURL).Task(ctx, models.TaskID(id))
			if err != nil {
				return err
			}

			fmt.Printf("task       %s (%s)\n", bold(strconv.FormatUint(uint64(task.ID), 10)), task.Name)
			fmt.Printf("status     %s\n", taskStatusText(task.Status))
			fmt.Printf("mode       %s\n", task.Mode)
			if task.Command != "" {
				fmt.Printf("command    %s\n", task.Command)
			}
			fmt.Printf("deps       %s\n", formatDeps(task))
			if len(task.Next) > 0 {
				fmt.Printf("unblocks   %s\n", formatIDs(task.Next))
			}
			fmt.Printf("submitted  %s\n", task.SubmittedAt.Format(time.RFC3339))
			if task.StartedAt != nil {
				fmt.Printf("started    %s\n", task.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List finished tasks from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			records, err := client.New(serverURL).History(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no finished tasks")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tEXIT\tDURATION\tFINISHED")
			for _, rec := range records {
				exit := "-"
				if rec.ExitCode != nil {
					exit = strconv.Itoa(*rec.ExitCode)
				}
				duration := time.Duration(rec.DurationMS) * time.Millisecond
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.Name, taskStatusText(rec.Status), exit, duration, rec.FinishedAt.Format("15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the manager's lifecycle state and load",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			state, err := client.New(serverURL).Status(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("manager  %s\n", bold(state.ID))
			fmt.Printf("status   %s\n", managerStatusText(state.Status))
			fmt.Printf("workers  %d\n", state.Workers)
			fmt.Printf("pending  %d task(s), %d ready to run\n", state.Pending, state.QueueDepth)
			return nil
		},
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext()
			defer cancel()
			start := time.Now()
			if err := client.New(serverURL).Ping(ctx); err != nil {
				return err
			}
			fmt.Printf("%s %s (%s)\n", green("ok"), serverURL, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func timeoutContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func taskStatusText(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return yellow(string(status))
	case models.TaskStatusRunning:
		return cyan(string(status))
	case models.TaskStatusCompleted:
		return green(string(status))
	case models.TaskStatusFailed:
		return red(string(status))
	}
	return string(status)
}

func managerStatusText(status models.ManagerStatus) string {
	switch status {
	case models.ManagerRunning:
		return green(string(status))
	case models.ManagerStopped:
		return yellow(string(status))
	case models.ManagerShutdown:
		return red(string(status))
	}
	return string(status)
}

func formatDeps(t models.Task) string {
	if len(t.Deps) == 0 {
		return "-"
	}
	if t.InDegree > 0 {
		return fmt.Sprintf("%s (%d unmet)", formatIDs(t.Deps), t.InDegree)
	}
	return formatIDs(t.Deps)
}

func formatIDs(ids []models.TaskID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
