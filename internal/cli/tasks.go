package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/pkg/task"
)

var (
	tasksStatus string
	tasksUser   string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status (pending, in_progress, done)")
	tasksCmd.Flags().StringVar(&tasksUser, "user", "default", "user scope to list tasks for")

	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	var filter task.Filter
	if tasksStatus != "" {
		status, err := task.ParseStatus(tasksStatus)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	store, err := task.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.List(cmd.Context(), tasksUser, filter)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("no tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tURGENCY\tDUE\tTITLE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Urgency, due, t.Title)
	}
	return w.Flush()
}
