package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coursepull/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs, or the tasks of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				run, err := store.GetRun(cmd.Context(), runID)
				if err != nil {
					if errors.Is(err, history.ErrRunNotFound) {
						return fmt.Errorf("no run matches %q", runID)
					}
					return err
				}
				tasks, err := store.RunTasks(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				reconciles, err := store.RunReconciles(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				printRunDetail(out, run, tasks, reconciles)
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			spec := tableSpec{
				headers: []string{"Run", "Started", "Duration", "Status", "English", "Downloaded", "Skipped", "Failed", "Merged"},
				aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			}
			for _, run := range runs {
				spec.rows = append(spec.rows, []string{
					shortID(run.ID),
					humanize.Time(run.StartedAt),
					formatDuration(run.Duration()),
					string(run.Status),
					yesNo(run.English),
					strconv.Itoa(run.Downloaded),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
					strconv.Itoa(run.Merged),
				})
			}
			fmt.Fprintln(out, spec.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show the tasks of the run with this id or id prefix")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent runs to list")
	return cmd
}

func printRunDetail(out io.Writer, run history.Run, tasks []history.TaskRecord, reconciles []history.ReconcileRecord) {
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Duration: %s\n", formatDuration(run.Duration()))
	}
	fmt.Fprintf(out, "Download root: %s\n", run.DownloadRoot)
	fmt.Fprintf(out, "English audio: %s\n", yesNo(run.English))
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}

	if len(tasks) > 0 {
		spec := tableSpec{headers: []string{"Lesson", "Outcome", "Reason", "Error"}}
		for _, task := range tasks {
			spec.rows = append(spec.rows, []string{task.Stem, string(task.Outcome), task.Reason, taskError(task)})
		}
		fmt.Fprintln(out, spec.render())
	}
	if len(reconciles) > 0 {
		spec := tableSpec{
			headers: []string{"Stem", "Outcome", "Moved", "Error"},
			aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		}
		for _, rec := range reconciles {
			spec.rows = append(spec.rows, []string{rec.Stem, rec.Outcome, strconv.Itoa(rec.Moved), rec.ErrorMessage})
		}
		fmt.Fprintln(out, spec.render())
	}
}

func taskError(task history.TaskRecord) string {
	if task.ErrorMessage == "" {
		return ""
	}
	if task.ErrorKind == "" {
		return task.ErrorMessage
	}
	return task.ErrorKind + ": " + task.ErrorMessage
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
