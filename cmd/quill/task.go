package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/quilltask/quill/internal/gitctx"
	"github.com/quilltask/quill/internal/models"
	"github.com/quilltask/quill/internal/taskstore"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks for the current git context without the TUI",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks for the current context",
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add a task to the current context",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

func init() {
	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskDoneCmd, taskRmCmd)
}

// openStore prepares a task store switched to the context of the current
// working directory. Outside a repository it falls back to the sentinel
// context, same as the TUI.
func openStore(ctx context.Context) (*taskstore.Store, func(), error) {
	backend, _, _, notice, err := openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	if notice != "" {
		fmt.Fprintln(os.Stderr, notice)
	}

	wd, err := os.Getwd()
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("resolve working directory: %w", err)
	}
	key, err := gitctx.Resolve(wd)
	if err != nil {
		key = models.None
	}

	store := taskstore.New(backend)
	if err := store.SwitchContext(ctx, key); err != nil {
		backend.Close()
		return nil, nil, err
	}
	return store, func() { backend.Close() }, nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tasks := store.Tasks()
	if len(tasks) == 0 {
		fmt.Printf("No tasks for %s\n", store.ActiveContext().Label())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSTATUS\tTEXT\tCREATED\n")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Status, t.Text, t.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	task, err := store.Add(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Added task %d to %s\n", task.ID, store.ActiveContext().Label())
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SetStatus(ctx, id, models.StatusCompleted); err != nil {
		return err
	}
	fmt.Printf("Completed task %d\n", id)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.Delete(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted task %d: %s\n", removed.ID, removed.Text)
	return nil
}
