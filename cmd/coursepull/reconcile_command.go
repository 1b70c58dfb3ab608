package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coursepull/internal/artifact"
	"coursepull/internal/cleanup"
	"coursepull/internal/config"
	"coursepull/internal/deps"
	"coursepull/internal/history"
	"coursepull/internal/logging"
	"coursepull/internal/reconcile"
	"coursepull/internal/runlock"
	"coursepull/internal/services"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var root string
	var noConsolidate bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge downloaded English audio and tidy an existing download tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := resolveRoot(cfg, root)
			if err != nil {
				return err
			}

			ffmpeg := deps.CheckBinaries([]deps.Requirement{{
				Name:        "FFmpeg",
				Command:     cfg.FFmpegBinary(),
				Description: "Merges English audio into lesson videos",
			}})
			if missing := deps.Missing(ffmpeg); len(missing) > 0 {
				return missingDependencyError(missing)
			}

			lock, err := runlock.Acquire(target)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			logger, _, err := runLogger(cfg)
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

			run, err := store.BeginRun(runCtx, target, true)
			if err != nil {
				return err
			}
			runCtx = services.WithRunID(runCtx, run.ID)

			removed := removeEmptyFinalProjects(target, logger)

			result, runErr := newReconcileEngine(cfg, logger).Run(runCtx, target)
			recordReconcileResult(runCtx, store, run.ID, target, result, logger)

			var consolidated *cleanup.ConsolidateResult
			if runErr == nil && cfg.Cleanup.Enabled && cfg.Cleanup.Consolidate && !noConsolidate {
				res, err := cleanup.Consolidate(runCtx, target, logger)
				consolidated = &res
				runErr = err
			}

			status := history.RunStatusCompleted
			switch {
			case errors.Is(runErr, context.Canceled):
				status = history.RunStatusCancelled
			case runErr != nil:
				status = history.RunStatusFailed
			}
			if err := store.FinishRun(context.WithoutCancel(runCtx), run.ID, status, runErr); err != nil {
				logging.WarnWithContext(logger, "failed to finish run record", "history_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "run history shows this run as running"),
				)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed empty final project folders: %d\n", removed)
			printReconcileResult(out, target, result)
			if consolidated != nil {
				fmt.Fprintf(out, "Consolidated cleanup folders: %d moved, %d failed\n", len(consolidated.Moved), len(consolidated.Errors))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Download tree to reconcile (defaults to paths.download_root)")
	cmd.Flags().BoolVar(&noConsolidate, "no-consolidate", false, "Leave cleanup folders next to their lessons")
	return cmd
}

func newConsolidateCommand(ctx *commandContext) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Move every cleanup folder into the download root's _cleanup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := resolveRoot(cfg, root)
			if err != nil {
				return err
			}
			lock, err := runlock.Acquire(target)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			logger, _, err := runLogger(cfg)
			if err != nil {
				return err
			}
			result, err := cleanup.Consolidate(cmd.Context(), target, logger)
			out := cmd.OutOrStdout()
			for _, move := range result.Moved {
				fmt.Fprintf(out, "%s -> %s\n", relativeTo(target, move.From), relativeTo(target, move.To))
			}
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "failed: %s: %v\n", relativeTo(target, failure.Path), failure.Error)
			}
			fmt.Fprintf(out, "Consolidated %d cleanup folder(s) into %s\n", len(result.Moved), cleanup.ConsolidatedRoot(target))
			return err
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Download tree to consolidate (defaults to paths.download_root)")
	return cmd
}

func resolveRoot(cfg *config.Config, override string) (string, error) {
	if strings.TrimSpace(override) == "" {
		return cfg.Paths.DownloadRoot, nil
	}
	root, err := config.ExpandPath(strings.TrimSpace(override))
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("inspect root %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %q is not a directory", root)
	}
	return root, nil
}

// removeEmptyFinalProjects checks every course directory directly under root.
func removeEmptyFinalProjects(root string, logger *slog.Logger) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || name == artifact.ConsolidatedDir {
			continue
		}
		ok, err := cleanup.RemoveEmptyFinalProject(root, name, logger)
		if err != nil {
			logging.WarnWithContext(logger, "final project cleanup failed", "final_project_cleanup_failed",
				logging.String(logging.FieldCourse, name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "empty final project folder left in place"),
			)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed
}

func recordReconcileResult(ctx context.Context, store *history.Store, runID, root string, result reconcile.Result, logger *slog.Logger) {
	for _, stem := range result.Stems {
		rel := relativeTo(root, stem.Stem)
		course, _, _ := strings.Cut(rel, "/")
		rec := history.ReconcileRecord{
			Course:  course,
			Stem:    rel,
			Outcome: string(stem.Outcome),
			Moved:   len(stem.Moved),
		}
		if stem.Err != nil {
			rec.ErrorMessage = stem.Err.Error()
		}
		if err := store.RecordReconcile(context.WithoutCancel(ctx), runID, rec); err != nil {
			logging.WarnWithContext(logger, "failed to record reconcile outcome", "history_write_failed",
				logging.String(logging.FieldStem, rel),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history is incomplete"),
			)
		}
	}
}

func printReconcileResult(out io.Writer, root string, result reconcile.Result) {
	fmt.Fprintf(out, "Merged: %d  Relocated: %d  Already merged: %d  Failed: %d  Orphans: %d\n",
		result.Merged, result.Relocated, result.AlreadyMerged, result.Failed, result.Orphans)
	for _, stem := range result.Stems {
		if stem.Err == nil && stem.Outcome != reconcile.OutcomeOrphan {
			continue
		}
		detail := string(stem.Outcome)
		if stem.Err != nil {
			detail = fmt.Sprintf("%s: %v", detail, stem.Err)
		}
		fmt.Fprintf(out, "  %s (%s)\n", relativeTo(root, stem.Stem), detail)
	}
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
