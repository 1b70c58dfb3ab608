package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"coursepull/internal/artifact"
	"coursepull/internal/logging"
	"coursepull/internal/muxer"
	"coursepull/internal/scan"
)

// Merger performs the audio merge for one stem.
type Merger interface {
	Merge(ctx context.Context, req muxer.MergeRequest) error
}

// Options controls what the engine may change on disk.
type Options struct {
	// Cleanup relocates originals into _cleanup_<stem> once a merged file exists.
	Cleanup bool
}

// Outcome is the per-stem result recorded in the history ledger.
type Outcome string

const (
	OutcomeMerged        Outcome = "merged"
	OutcomeRelocated     Outcome = "relocated"
	OutcomeAlreadyMerged Outcome = "already_merged"
	OutcomeMergeFailed   Outcome = "merge_failed"
	OutcomeOrphan        Outcome = "orphan"
)

// StemResult describes what happened to one audio track.
type StemResult struct {
	// Stem is the native path of the set without any suffix.
	Stem    string
	Outcome Outcome
	// Moved lists the destinations of relocated originals.
	Moved []string
	Err   error
}

// Result summarises a pass.
type Result struct {
	Merged         int
	Relocated      int
	AlreadyMerged  int
	Failed         int
	Orphans        int
	RenameFailures int
	Stems          []StemResult
}

// Engine reconciles a download tree.
type Engine struct {
	merger Merger
	opts   Options
	logger *slog.Logger
	rename func(oldpath, newpath string) error
}

// New constructs an Engine.
func New(merger Merger, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		merger: merger,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "reconcile"),
		rename: os.Rename,
	}
}

// Run processes every audio track under root that is not inside a cleanup
// directory. Failures on one stem are logged and never stop the pass; only
// context cancellation ends it early, in which case the partial result is
// returned with the context error.
func (e *Engine) Run(ctx context.Context, root string) (Result, error) {
	var result Result
	logger := logging.WithContext(ctx, e.logger)

	audio, err := e.collectAudio(root, logger)
	if err != nil {
		return result, err
	}

	for _, path := range audio {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		set, ok := artifact.FromAudio(path)
		if !ok {
			continue
		}
		stem := e.reconcileSet(ctx, set, logger)
		result.add(stem)
	}

	logger.Info("reconcile pass complete",
		logging.String(logging.FieldEventType, "reconcile_complete"),
		logging.String("root", root),
		logging.Int("merged", result.Merged),
		logging.Int("relocated", result.Relocated),
		logging.Int("already_merged", result.AlreadyMerged),
		logging.Int("failed", result.Failed),
		logging.Int("orphans", result.Orphans),
		logging.Bool("cleanup", e.opts.Cleanup),
	)
	return result, nil
}

// collectAudio snapshots the audio tracks before anything is renamed so the
// walk never observes its own relocations.
func (e *Engine) collectAudio(root string, logger *slog.Logger) ([]string, error) {
	var audio []string
	for path, err := range scan.FilesUnder(root, scan.Only(artifact.KindAudio)) {
		if err != nil {
			logging.WarnWithContext(logger, "directory unreadable; skipped", "reconcile_scan_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "audio tracks below this directory are not merged"),
			)
			continue
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil, fmt.Errorf("relative path for %s: %w", path, relErr)
		}
		if artifact.InCleanupTree(rel) {
			continue
		}
		audio = append(audio, path)
	}
	return audio, nil
}

func (e *Engine) reconcileSet(ctx context.Context, set artifact.Set, logger *slog.Logger) StemResult {
	logger = logger.With(logging.String(logging.FieldStem, set.Stem))
	res := StemResult{Stem: set.Stem}

	switch {
	case fileExists(set.Merged):
		if !e.opts.Cleanup {
			res.Outcome = OutcomeAlreadyMerged
			logger.Debug("merged file present; cleanup disabled",
				logging.String(logging.FieldEventType, "already_merged"),
			)
			return res
		}
		res.Moved, res.Err = e.relocate(set, logger)
		if len(res.Moved) > 0 {
			res.Outcome = OutcomeRelocated
		} else {
			res.Outcome = OutcomeAlreadyMerged
		}
		logger.Info("merged file present; originals relocated",
			logging.String(logging.FieldEventType, "already_merged"),
			logging.Int("moved", len(res.Moved)),
		)
		return res

	case fileExists(set.Video):
		if e.merger == nil {
			res.Outcome = OutcomeMergeFailed
			res.Err = errors.New("no muxer configured")
			return res
		}
		err := e.merger.Merge(ctx, muxer.MergeRequest{
			VideoPath:  set.Video,
			AudioPath:  set.Audio,
			OutputPath: set.Merged,
		})
		if err != nil {
			res.Outcome = OutcomeMergeFailed
			res.Err = err
			logging.ErrorWithContext(logger, "audio merge failed; originals left in place", "merge_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the ffmpeg output above; the next run retries this lesson"),
			)
			return res
		}
		res.Outcome = OutcomeMerged
		logger.Info("english audio merged",
			logging.String(logging.FieldEventType, "merged"),
			logging.String("output", set.Merged),
		)
		if e.opts.Cleanup {
			res.Moved, res.Err = e.relocate(set, logger)
		}
		return res

	default:
		res.Outcome = OutcomeOrphan
		logging.WarnWithContext(logger, "audio track has no matching video; skipped", "orphan_audio",
			logging.String("audio", set.Audio),
			logging.Alert("orphan_audio"),
			logging.String(logging.FieldErrorHint, "re-run the download for this lesson"),
			logging.String(logging.FieldImpact, "lesson keeps its original audio"),
		)
		return res
	}
}

// relocate moves whichever originals still exist into the set's cleanup
// directory. Each rename is independent; the first failure is returned after
// the remaining originals have been attempted.
func (e *Engine) relocate(set artifact.Set, logger *slog.Logger) ([]string, error) {
	var present []string
	for _, original := range set.Originals() {
		if fileExists(original) {
			present = append(present, original)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}

	dir := set.CleanupDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.WarnWithContext(logger, "cleanup directory could not be created", "cleanup_mkdir_failed",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "originals remain next to the merged file"),
		)
		return nil, err
	}

	var moved []string
	var firstErr error
	for _, original := range present {
		dest := filepath.Join(dir, filepath.Base(original))
		err := e.moveNoClobber(original, dest)
		if err != nil {
			logging.WarnWithContext(logger, "relocation failed; file left in place", "relocate_failed",
				logging.String("path", original),
				logging.String("destination", dest),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "move the file manually or re-run reconcile"),
				logging.String(logging.FieldImpact, "original remains next to the merged file"),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		moved = append(moved, dest)
	}
	return moved, firstErr
}

func (e *Engine) moveNoClobber(src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("destination %s: %w", dest, fs.ErrExist)
	}
	return e.rename(src, dest)
}

func (r *Result) add(stem StemResult) {
	switch stem.Outcome {
	case OutcomeMerged:
		r.Merged++
	case OutcomeRelocated:
		r.Relocated++
	case OutcomeAlreadyMerged:
		r.AlreadyMerged++
	case OutcomeMergeFailed:
		r.Failed++
	case OutcomeOrphan:
		r.Orphans++
	}
	if stem.Outcome != OutcomeMergeFailed && stem.Err != nil {
		r.RenameFailures++
	}
	r.Stems = append(r.Stems, stem)
}

// Only returns the subset of r whose stems keep accepts, with the counters
// recomputed.
func (r Result) Only(keep func(StemResult) bool) Result {
	var out Result
	for _, stem := range r.Stems {
		if keep(stem) {
			out.add(stem)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
