package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coursepull/internal/deps"
	"coursepull/internal/history"
	"coursepull/internal/logging"
	"coursepull/internal/pipeline"
	"coursepull/internal/preflight"
	"coursepull/internal/runlock"
	"coursepull/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags sourceFlags

	cmd := &cobra.Command{
		Use:   "run [course-url...] [eng]",
		Short: "Download courses, then merge and tidy English audio",
		Long: `Download every lesson of the given courses into the download root.

Lessons already on disk are skipped, so an interrupted run can simply be
repeated. With --eng (or a trailing "eng" argument) the English audio track is
downloaded too, merged into each lesson, and the originals are moved aside.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg, args); err != nil {
				return err
			}

			statuses := deps.Check(cfg)
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return missingDependencyError(missing)
			}
			if result := preflight.CheckDirectoryAccess("Download root", cfg.Paths.DownloadRoot); !result.Passed {
				return fmt.Errorf("download root unusable: %s", result.Detail)
			}

			lock, err := runlock.Acquire(cfg.Paths.DownloadRoot)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			logger, logPath, err := runLogger(cfg)
			if err != nil {
				return err
			}

			sources, err := buildSources(cfg, logger)
			if err != nil {
				return err
			}

			dl, err := newDownloadClient(statuses[0].Command, cfg, logger)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := store.BeginRun(runCtx, cfg.Paths.DownloadRoot, cfg.Audio.English)
			if err != nil {
				return err
			}
			runCtx = services.WithRunID(runCtx, run.ID)
			runLog := logging.WithContext(runCtx, logger)
			runLog.Info("run started",
				logging.String(logging.FieldEventType, "run_started"),
				logging.String("download_root", cfg.Paths.DownloadRoot),
				logging.Int("courses", len(sources)),
				logging.Bool("english", cfg.Audio.English),
				logging.String("log_file", logPath),
			)

			runner := pipeline.New(pipelineOptions(cfg), dl, newReconcileEngine(cfg, logger), logger,
				pipeline.WithRecorder(store, run.ID))
			batch, runErr := runner.RunAll(runCtx, sources)

			status, finishErr := runOutcome(batch, runErr)
			if err := store.FinishRun(context.WithoutCancel(runCtx), run.ID, status, finishErr); err != nil {
				logging.WarnWithContext(runLog, "failed to finish run record", "history_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "run history shows this run as running"),
				)
			}
			runLog.Info("run finished",
				logging.String(logging.FieldEventType, "run_finished"),
				logging.String("status", string(status)),
			)

			out := cmd.OutOrStdout()
			printBatchSummary(out, batch)
			fmt.Fprintf(out, "Run %s %s\n", shortID(run.ID), status)
			return finishErr
		},
	}

	flags.register(cmd)
	return cmd
}

// runOutcome maps a batch to the recorded status. Task failures do not fail
// the run; courses that could not be loaded or finished do.
func runOutcome(batch pipeline.BatchResult, runErr error) (history.RunStatus, error) {
	switch {
	case errors.Is(runErr, context.Canceled):
		return history.RunStatusCancelled, runErr
	case runErr != nil:
		return history.RunStatusFailed, runErr
	case len(batch.Errors) > 0:
		labels := make([]string, 0, len(batch.Errors))
		for _, courseErr := range batch.Errors {
			labels = append(labels, courseErr.Label)
		}
		return history.RunStatusFailed, fmt.Errorf("%d course(s) failed: %s", len(batch.Errors), strings.Join(labels, ", "))
	default:
		return history.RunStatusCompleted, nil
	}
}

func missingDependencyError(missing []deps.Status) error {
	lines := make([]string, 0, len(missing))
	for _, dep := range missing {
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", dep.Name, detail))
	}
	return services.Wrap(services.ErrConfiguration, "run", "check dependencies",
		"required tools are missing\n"+strings.Join(lines, "\n"), nil)
}

func printBatchSummary(out io.Writer, batch pipeline.BatchResult) {
	if len(batch.Courses) > 0 {
		spec := tableSpec{
			headers: []string{"Course", "Downloaded", "Skipped", "Failed", "No URL", "Merged", "Relocated"},
			aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		}
		var totals [6]int
		for _, course := range batch.Courses {
			merged, relocated := 0, 0
			if course.Reconcile != nil {
				merged = course.Reconcile.Merged
				relocated = course.Reconcile.Relocated
			}
			counts := [6]int{course.Downloaded, course.Skipped, course.Failed, course.NoURL, merged, relocated}
			row := []string{course.Course}
			for i, count := range counts {
				totals[i] += count
				row = append(row, strconv.Itoa(count))
			}
			spec.rows = append(spec.rows, row)
		}
		if len(batch.Courses) > 1 {
			spec.footer = []string{"Total"}
			for _, total := range totals {
				spec.footer = append(spec.footer, strconv.Itoa(total))
			}
		}
		fmt.Fprintln(out, spec.render())
	}
	for _, courseErr := range batch.Errors {
		fmt.Fprintf(out, "Course %s failed: %v\n", courseErr.Label, courseErr.Err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
