package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"coursepull/internal/artifact"
	"coursepull/internal/catalog"
	"coursepull/internal/cleanup"
	"coursepull/internal/downloader"
	"coursepull/internal/history"
	"coursepull/internal/logging"
	"coursepull/internal/naming"
	"coursepull/internal/reconcile"
	"coursepull/internal/services"
)

// Downloader fetches one lesson.
type Downloader interface {
	Download(ctx context.Context, req downloader.Request) error
}

// Reconciler merges and relocates artifacts under a root.
type Reconciler interface {
	Run(ctx context.Context, root string) (reconcile.Result, error)
}

// Recorder receives per-task and per-stem outcomes.
type Recorder interface {
	RecordTask(ctx context.Context, runID string, rec history.TaskRecord) error
	RecordReconcile(ctx context.Context, runID string, rec history.ReconcileRecord) error
}

// Options controls a run.
type Options struct {
	Root          string
	EnglishAudio  bool
	Cleanup       bool
	Consolidate   bool
	MaxConcurrent int
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder stores outcomes under runID.
func WithRecorder(recorder Recorder, runID string) Option {
	return func(r *Runner) {
		r.recorder = recorder
		r.runID = runID
	}
}

// Runner executes courses.
type Runner struct {
	opts       Options
	downloader Downloader
	reconciler Reconciler
	recorder   Recorder
	runID      string
	logger     *slog.Logger
}

// New constructs a Runner. The reconciler is only used when English audio
// is requested.
func New(opts Options, dl Downloader, rec Reconciler, logger *slog.Logger, options ...Option) *Runner {
	r := &Runner{
		opts:       opts,
		downloader: dl,
		reconciler: rec,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	Task    catalog.Task
	Stem    string
	Outcome history.TaskOutcome
	Reason  string
	Err     error
}

// CourseResult summarises one course.
type CourseResult struct {
	Course              string
	Tasks               []TaskResult
	Downloaded          int
	Skipped             int
	Failed              int
	NoURL               int
	FinalProjectRemoved bool
	Reconcile           *reconcile.Result
	Consolidate         *cleanup.ConsolidateResult
}

// CourseError is a course that could not be loaded or finished.
type CourseError struct {
	Label string
	Err   error
}

// BatchResult summarises RunAll.
type BatchResult struct {
	Courses []CourseResult
	Errors  []CourseError
}

// Plan evaluates the existence gate for every task without downloading.
func (r *Runner) Plan(course catalog.Course) []TaskResult {
	fsys := os.DirFS(r.opts.Root)
	results := make([]TaskResult, 0, course.TaskCount())
	for _, task := range course.Tasks() {
		results = append(results, r.gate(fsys, course.Title, task))
	}
	return results
}

// RunCourse downloads every unit of course in order and then tidies the tree.
// Task failures are reported in the result; the returned error is reserved
// for cancellation and for failures of the post-download passes.
func (r *Runner) RunCourse(ctx context.Context, course catalog.Course) (CourseResult, error) {
	ctx = services.WithCourse(ctx, course.Title)
	logger := logging.WithContext(ctx, r.logger)
	result := CourseResult{Course: course.Title}

	total := int64(course.TaskCount())
	logger.Info("course started",
		logging.String(logging.FieldEventType, "course_started"),
		logging.Int("units", len(course.Units)),
		logging.Int64("tasks", total),
	)

	var started atomic.Int64
	for _, unit := range course.Units {
		tasks, err := r.runUnit(services.WithStage(ctx, "download"), course.Title, unit, total, &started)
		result.Tasks = append(result.Tasks, tasks...)
		if err != nil {
			result.tally()
			return result, err
		}
	}
	result.tally()

	logger.Info("downloads finished",
		logging.String(logging.FieldEventType, "downloads_finished"),
		logging.Int("downloaded", result.Downloaded),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("no_url", result.NoURL),
	)

	if !r.opts.EnglishAudio {
		return result, nil
	}
	if err := r.tidy(services.WithStage(ctx, "reconcile"), course.Title, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) runUnit(ctx context.Context, courseTitle string, unit catalog.Unit, total int64, started *atomic.Int64) ([]TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("unit", unit.Title))
	fsys := os.DirFS(r.opts.Root)
	results := make([]TaskResult, len(unit.Tasks))

	var group errgroup.Group
	if r.opts.MaxConcurrent > 0 {
		group.SetLimit(r.opts.MaxConcurrent)
	}
	launched := 0
	for i, task := range unit.Tasks {
		if ctx.Err() != nil {
			break
		}
		launched++
		group.Go(func() error {
			res := r.gate(fsys, courseTitle, task)
			if res.Outcome == "" {
				n := started.Add(1)
				logger.Info("download started",
					logging.String(logging.FieldStem, res.Stem),
					logging.String("progress", fmt.Sprintf("%d/%d", n, total)),
				)
				res = r.download(ctx, res, logger)
			} else {
				r.logSkip(logger, res)
			}
			r.recordTask(ctx, courseTitle, res, logger)
			results[i] = res
			return nil
		})
	}
	_ = group.Wait()
	return results[:launched], ctx.Err()
}

// gate returns a result with an empty outcome when the task must be downloaded.
func (r *Runner) gate(fsys fs.FS, courseTitle string, task catalog.Task) TaskResult {
	stem := naming.Stem(courseTitle, task.Section, task.UnitTitle, task.Index, task.Title)
	res := TaskResult{Task: task, Stem: stem}
	if !task.HasURL() {
		res.Outcome = history.TaskNoURL
		res.Reason = "no_playback_url"
		return res
	}
	decision := artifact.Decide(fsys, stem, r.opts.EnglishAudio)
	res.Reason = decision.Reason
	if decision.Action == artifact.ActionSkip {
		res.Outcome = history.TaskSkipped
	}
	return res
}

func (r *Runner) download(ctx context.Context, res TaskResult, logger *slog.Logger) TaskResult {
	dir, name := naming.TaskPaths(r.opts.Root, res.Stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Outcome = history.TaskFailed
		res.Err = services.Wrap(services.ErrTransient, "download", "prepare", "create unit directory", err)
	} else if err := r.downloader.Download(ctx, downloader.Request{
		URL:          res.Task.PlaybackURL,
		Dir:          dir,
		Name:         name,
		EnglishAudio: r.opts.EnglishAudio,
	}); err != nil {
		res.Outcome = history.TaskFailed
		res.Err = err
	} else {
		res.Outcome = history.TaskDownloaded
	}

	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			logger.Info("download cancelled", logging.String(logging.FieldStem, res.Stem))
			return res
		}
		logging.ErrorWithContext(logger, "download failed", "download_failed",
			logging.String(logging.FieldStem, res.Stem),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, "rerun to retry; completed lessons are skipped"),
		)
		return res
	}
	logger.Info("download finished", logging.String(logging.FieldStem, res.Stem))
	return res
}

func (r *Runner) logSkip(logger *slog.Logger, res TaskResult) {
	attrs := append([]logging.Attr{logging.String(logging.FieldStem, res.Stem)},
		logging.DecisionAttrs("existence_gate", string(res.Outcome), res.Reason)...)
	if res.Outcome == history.TaskNoURL {
		logger.Info("skipping download; unit has no video file", logging.Args(attrs...)...)
		return
	}
	logger.Info("skipping download; files already exist", logging.Args(attrs...)...)
}

func (r *Runner) recordTask(ctx context.Context, courseTitle string, res TaskResult, logger *slog.Logger) {
	if r.recorder == nil {
		return
	}
	rec := history.TaskRecord{
		Course:      courseTitle,
		Stem:        res.Stem,
		PlaybackURL: res.Task.PlaybackURL,
		Outcome:     res.Outcome,
		Reason:      res.Reason,
	}
	if res.Err != nil {
		rec.ErrorKind = services.FailureKind(res.Err)
		rec.ErrorMessage = res.Err.Error()
	}
	if err := r.recorder.RecordTask(context.WithoutCancel(ctx), r.runID, rec); err != nil {
		logging.WarnWithContext(logger, "failed to record task", "history_write_failed",
			logging.String(logging.FieldStem, res.Stem),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history is incomplete"),
		)
	}
}

// tidy runs the post-download passes for a course.
func (r *Runner) tidy(ctx context.Context, courseTitle string, result *CourseResult) error {
	logger := logging.WithContext(ctx, r.logger)

	removed, err := cleanup.RemoveEmptyFinalProject(r.opts.Root, courseTitle, r.logger)
	if err != nil {
		logging.WarnWithContext(logger, "final project cleanup failed", "final_project_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "empty final project folder left in place"),
		)
	}
	result.FinalProjectRemoved = removed

	if r.reconciler == nil {
		return nil
	}
	// The pass covers the whole root; only this course's stems are reported.
	rec, err := r.reconciler.Run(ctx, r.opts.Root)
	courseDir := naming.CourseDir(courseTitle)
	own := rec.Only(func(stem reconcile.StemResult) bool {
		first, _, _ := strings.Cut(r.relativeStem(stem.Stem), "/")
		return first == courseDir
	})
	result.Reconcile = &own
	r.recordReconcile(ctx, courseTitle, own, logger)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if !r.opts.Cleanup || !r.opts.Consolidate {
		return nil
	}
	consolidated, err := cleanup.Consolidate(ctx, r.opts.Root, r.logger)
	result.Consolidate = &consolidated
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	return nil
}

func (r *Runner) recordReconcile(ctx context.Context, courseTitle string, result reconcile.Result, logger *slog.Logger) {
	if r.recorder == nil {
		return
	}
	for _, stem := range result.Stems {
		rec := history.ReconcileRecord{
			Course:  courseTitle,
			Stem:    r.relativeStem(stem.Stem),
			Outcome: string(stem.Outcome),
			Moved:   len(stem.Moved),
		}
		if stem.Err != nil {
			rec.ErrorMessage = stem.Err.Error()
		}
		if err := r.recorder.RecordReconcile(context.WithoutCancel(ctx), r.runID, rec); err != nil {
			logging.WarnWithContext(logger, "failed to record reconcile outcome", "history_write_failed",
				logging.String(logging.FieldStem, rec.Stem),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history is incomplete"),
			)
		}
	}
}

func (r *Runner) relativeStem(native string) string {
	rel, err := filepath.Rel(r.opts.Root, native)
	if err != nil {
		return filepath.ToSlash(native)
	}
	return filepath.ToSlash(rel)
}

// RunAll loads and runs each source in order. A course that fails to load or
// finish is logged and collected; the batch moves on. Only cancellation stops
// the batch early.
func (r *Runner) RunAll(ctx context.Context, sources []catalog.Source) (BatchResult, error) {
	var batch BatchResult
	logger := logging.WithContext(ctx, r.logger)

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		course, err := source.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			logging.ErrorWithContext(logger, "course could not be loaded", "course_load_failed",
				logging.String("source", source.Label),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the course url, cookie, or snapshot directory"),
			)
			batch.Errors = append(batch.Errors, CourseError{Label: source.Label, Err: err})
			continue
		}

		result, err := r.RunCourse(ctx, course)
		batch.Courses = append(batch.Courses, result)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			logging.ErrorWithContext(logger, "course did not finish", "course_failed",
				logging.String(logging.FieldCourse, course.Title),
				logging.Error(err),
			)
			batch.Errors = append(batch.Errors, CourseError{Label: course.Title, Err: err})
		}
	}
	return batch, nil
}

func (c *CourseResult) tally() {
	c.Downloaded, c.Skipped, c.Failed, c.NoURL = 0, 0, 0, 0
	for _, task := range c.Tasks {
		switch task.Outcome {
		case history.TaskDownloaded:
			c.Downloaded++
		case history.TaskSkipped:
			c.Skipped++
		case history.TaskFailed:
			c.Failed++
		case history.TaskNoURL:
			c.NoURL++
		}
	}
}
