package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/tui"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Query task history",
	Long: `List tasks recorded in the history store, newest first.

Examples:
  # First page of everything
  agentmesh tasks

  # Failed tasks mentioning "deploy"
  agentmesh tasks --status failed --name deploy`,
	RunE: runTasks,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task from history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var (
	tasksStatus   string
	tasksName     string
	tasksPage     int
	tasksPageSize int
	tasksJSON     bool
	tasksJournal  bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksShowCmd)

	tasksCmd.PersistentFlags().BoolVar(&tasksJSON, "json", false, "Output as JSON")
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status (running, completed, failed)")
	tasksCmd.Flags().StringVar(&tasksName, "name", "", "Filter by title substring")
	tasksCmd.Flags().IntVar(&tasksPage, "page", 1, "Page number")
	tasksCmd.Flags().IntVar(&tasksPageSize, "page-size", state.DefaultPageSize, "Tasks per page")
	tasksShowCmd.Flags().BoolVar(&tasksJournal, "journal", false, "Include the recorded event journal")
}

func runTasks(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	page, err := store.Query(contextOr(cmd.Context()), state.TaskQuery{
		Page:     tasksPage,
		PageSize: tasksPageSize,
		Status:   tasksStatus,
		Name:     tasksName,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tasksJSON {
		return writeJSON(out, page)
	}
	printTaskPage(out, page, time.Now())
	return nil
}

func printTaskPage(out io.Writer, page *state.TaskPage, now time.Time) {
	if len(page.Tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tTITLE")
	fmt.Fprintln(w, "--\t------\t-------\t-----")
	for _, t := range page.Tasks {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n",
			t.ID,
			view.StatusIcon(t.Status), t.Status,
			view.RelativeAge(t.CreatedAt, now),
			tui.Truncate(t.Title, 60),
		)
	}
	_ = w.Flush()

	pages := (page.Total + page.PageSize - 1) / page.PageSize
	fmt.Fprintf(out, "\nPage %d of %d (%d tasks)\n", page.Page, pages, page.Total)
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := contextOr(cmd.Context())
	id := core.TaskID(args[0])
	task, err := store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	var journal []state.JournalEntry
	if tasksJournal {
		if journal, err = store.Journal(ctx, id); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if tasksJSON {
		return writeJSON(out, struct {
			Task    *core.Task           `json:"task"`
			Journal []state.JournalEntry `json:"journal,omitempty"`
		}{task, journal})
	}

	fmt.Fprintf(out, "Task:     %s\n", task.ID)
	fmt.Fprintf(out, "Title:    %s\n", task.Title)
	fmt.Fprintf(out, "Status:   %s %s\n", view.StatusIcon(task.Status), task.Status)
	if task.Reason != "" {
		fmt.Fprintf(out, "Reason:   %s\n", task.Reason)
	}
	fmt.Fprintf(out, "Created:  %s\n", task.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Updated:  %s\n", task.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "\n%s\n", task.Description)

	if len(journal) > 0 {
		fmt.Fprintln(out, "\nJournal:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, e := range journal {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", e.ID, e.RecordedAt.Local().Format(time.TimeOnly), e.Type, e.TurnID)
		}
		_ = w.Flush()
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
