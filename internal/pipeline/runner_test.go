package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coursepull/internal/catalog"
	"coursepull/internal/downloader"
	"coursepull/internal/history"
	"coursepull/internal/logging"
	"coursepull/internal/muxer"
	"coursepull/internal/naming"
	"coursepull/internal/reconcile"
	"coursepull/internal/services"
)

// fakeDownloader writes the files the real downloader would produce.
type fakeDownloader struct {
	mu       sync.Mutex
	requests []downloader.Request
	fail     map[string]error
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeDownloader) Download(ctx context.Context, req downloader.Request) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.fail[req.Name]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(req.Dir, req.Name+".mp4"), []byte("video"), 0o644); err != nil {
		return err
	}
	if req.EnglishAudio {
		return os.WriteFile(filepath.Join(req.Dir, req.Name+".en.m4a"), []byte("audio"), 0o644)
	}
	return nil
}

func (f *fakeDownloader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type writingMerger struct {
	calls atomic.Int32
}

func (m *writingMerger) Merge(_ context.Context, req muxer.MergeRequest) error {
	m.calls.Add(1)
	return os.WriteFile(req.OutputPath, []byte("merged"), 0o644)
}

type memoryRecorder struct {
	mu         sync.Mutex
	tasks      []history.TaskRecord
	reconciles []history.ReconcileRecord
	runIDs     map[string]struct{}
}

func (m *memoryRecorder) RecordTask(_ context.Context, runID string, rec history.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, rec)
	m.note(runID)
	return nil
}

func (m *memoryRecorder) RecordReconcile(_ context.Context, runID string, rec history.ReconcileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciles = append(m.reconciles, rec)
	m.note(runID)
	return nil
}

func (m *memoryRecorder) note(runID string) {
	if m.runIDs == nil {
		m.runIDs = make(map[string]struct{})
	}
	m.runIDs[runID] = struct{}{}
}

func sampleCourse() catalog.Course {
	return catalog.Course{
		Title: "Watercolor: Basics",
		Units: []catalog.Unit{
			{
				Title: "U1. Introduction",
				Tasks: []catalog.Task{
					{PlaybackURL: "https://cdn.example/0.m3u8", Title: "Welcome.", Section: "Start", UnitTitle: "U1. Introduction", Index: 0},
					{PlaybackURL: "https://cdn.example/1.m3u8", Title: "Tools", Section: "Start", UnitTitle: "U1. Introduction", Index: 1},
					{Title: "Reading", Section: "Start", UnitTitle: "U1. Introduction", Index: 2},
				},
			},
			{
				Title: "U2. Color",
				Tasks: []catalog.Task{
					{PlaybackURL: "https://cdn.example/2.m3u8", Title: "Mixing", Section: "Color", UnitTitle: "U2. Color", Index: 0},
				},
			},
		},
	}
}

func newRunner(t *testing.T, root string, english bool, dl Downloader, options ...Option) (*Runner, *writingMerger) {
	t.Helper()
	merger := &writingMerger{}
	engine := reconcile.New(merger, reconcile.Options{Cleanup: true}, logging.NewNop())
	opts := Options{Root: root, EnglishAudio: english, Cleanup: true, Consolidate: true}
	return New(opts, dl, engine, logging.NewNop(), options...), merger
}

func TestRunCourseDownloadsThenSkipsOnRerun(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{}
	runner, merger := newRunner(t, root, false, dl)

	result, err := runner.RunCourse(context.Background(), sampleCourse())
	if err != nil {
		t.Fatalf("RunCourse returned error: %v", err)
	}
	if result.Downloaded != 3 || result.NoURL != 1 || result.Failed != 0 {
		t.Fatalf("unexpected first result: %+v", result)
	}
	if merger.calls.Load() != 0 {
		t.Fatal("reconcile must not run without english audio")
	}

	stem := naming.Stem("Watercolor: Basics", "Start", "U1. Introduction", 0, "Welcome.")
	if _, err := os.Stat(naming.Resolve(root, stem) + ".mp4"); err != nil {
		t.Fatalf("expected video at stem path: %v", err)
	}

	again, err := runner.RunCourse(context.Background(), sampleCourse())
	if err != nil {
		t.Fatalf("second RunCourse returned error: %v", err)
	}
	if again.Skipped != 3 || again.Downloaded != 0 {
		t.Fatalf("expected every task skipped on rerun, got %+v", again)
	}
	if dl.count() != 3 {
		t.Fatalf("expected no new downloads, got %d total", dl.count())
	}
	for _, task := range again.Tasks {
		if task.Outcome == history.TaskSkipped && task.Reason != "already_downloaded" {
			t.Fatalf("unexpected skip reason %q", task.Reason)
		}
	}
}

func TestRunCourseWithEnglishAudioMergesAndConsolidates(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{}
	recorder := &memoryRecorder{}
	runner, merger := newRunner(t, root, true, dl, WithRecorder(recorder, "run-1"))

	course := sampleCourse()
	finalDir := filepath.Join(root, naming.CourseDir(course.Title), naming.FinalProjectTitle)
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := runner.RunCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("RunCourse returned error: %v", err)
	}
	if merger.calls.Load() != 3 {
		t.Fatalf("expected three merges, got %d", merger.calls.Load())
	}
	if !result.FinalProjectRemoved {
		t.Fatal("expected empty final project folder to be removed")
	}
	if result.Reconcile == nil || result.Reconcile.Merged != 3 {
		t.Fatalf("unexpected reconcile result: %+v", result.Reconcile)
	}
	if result.Consolidate == nil || len(result.Consolidate.Moved) != 3 {
		t.Fatalf("unexpected consolidate result: %+v", result.Consolidate)
	}

	stem := naming.Stem(course.Title, "Start", "U1. Introduction", 0, "Welcome.")
	merged := naming.Resolve(root, stem) + ".en.mp4"
	if _, err := os.Stat(merged); err != nil {
		t.Fatalf("expected merged file: %v", err)
	}
	if _, err := os.Stat(naming.Resolve(root, stem) + ".mp4"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("original video should have been relocated, err=%v", err)
	}
	consolidated := filepath.Join(root, "_cleanup", "_cleanup_"+filepath.Base(naming.Resolve(root, stem)))
	if _, err := os.Stat(filepath.Join(consolidated, filepath.Base(naming.Resolve(root, stem))+".mp4")); err != nil {
		t.Fatalf("expected original under consolidated cleanup: %v", err)
	}

	if len(recorder.tasks) != 4 || len(recorder.reconciles) != 3 {
		t.Fatalf("unexpected recorder contents: %d tasks %d reconciles", len(recorder.tasks), len(recorder.reconciles))
	}
	if _, ok := recorder.runIDs["run-1"]; !ok || len(recorder.runIDs) != 1 {
		t.Fatalf("unexpected run ids %v", recorder.runIDs)
	}
	for _, rec := range recorder.reconciles {
		if filepath.IsAbs(rec.Stem) || rec.Outcome != string(reconcile.OutcomeMerged) || rec.Moved != 2 {
			t.Fatalf("unexpected reconcile record %+v", rec)
		}
	}

	again, err := runner.RunCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("second RunCourse returned error: %v", err)
	}
	if again.Downloaded != 0 || again.Skipped != 3 {
		t.Fatalf("expected merged lessons to be skipped, got %+v", again)
	}
	for _, task := range again.Tasks {
		if task.Outcome == history.TaskSkipped && task.Reason != "already_merged" {
			t.Fatalf("unexpected skip reason %q", task.Reason)
		}
	}
	if merger.calls.Load() != 3 {
		t.Fatalf("no merge should run twice, got %d", merger.calls.Load())
	}
	if len(again.Consolidate.Moved) != 0 {
		t.Fatalf("second consolidation should be a no-op, got %+v", again.Consolidate.Moved)
	}
}

func TestRunCourseFailureDoesNotCancelSiblings(t *testing.T) {
	root := t.TempDir()
	failing := naming.SaveName(0, "Welcome.")
	dl := &fakeDownloader{fail: map[string]error{
		failing: services.Wrap(services.ErrExternalTool, "downloader", "video", "N_m3u8DL-RE failed", errors.New("exit status 1")),
	}}
	recorder := &memoryRecorder{}
	runner, _ := newRunner(t, root, false, dl, WithRecorder(recorder, "run-2"))

	result, err := runner.RunCourse(context.Background(), sampleCourse())
	if err != nil {
		t.Fatalf("RunCourse returned error: %v", err)
	}
	if result.Failed != 1 || result.Downloaded != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var failed *history.TaskRecord
	for i := range recorder.tasks {
		if recorder.tasks[i].Outcome == history.TaskFailed {
			failed = &recorder.tasks[i]
		}
	}
	if failed == nil || failed.ErrorKind != "external_tool" || failed.ErrorMessage == "" {
		t.Fatalf("expected recorded external tool failure, got %+v", recorder.tasks)
	}

	delete(dl.fail, failing)
	again, err := runner.RunCourse(context.Background(), sampleCourse())
	if err != nil {
		t.Fatalf("second RunCourse returned error: %v", err)
	}
	if again.Downloaded != 1 || again.Skipped != 2 {
		t.Fatalf("expected only the failed lesson to be retried, got %+v", again)
	}
}

func TestRunCourseRespectsConcurrencyLimit(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{delay: 20 * time.Millisecond}
	runner := New(Options{Root: root, MaxConcurrent: 2}, dl, nil, nil)

	var tasks []catalog.Task
	for i := range 6 {
		tasks = append(tasks, catalog.Task{PlaybackURL: "u", Title: "Lesson", Section: "S", UnitTitle: "U", Index: i})
	}
	course := catalog.Course{Title: "C", Units: []catalog.Unit{{Title: "U", Tasks: tasks}}}

	result, err := runner.RunCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("RunCourse returned error: %v", err)
	}
	if result.Downloaded != 6 {
		t.Fatalf("expected six downloads, got %+v", result)
	}
	if peak := dl.maxInFlight.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent downloads, saw %d", peak)
	}
}

func TestRunCourseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := New(Options{Root: t.TempDir()}, &fakeDownloader{}, nil, nil)

	_, err := runner.RunCourse(ctx, sampleCourse())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlanDoesNotDownload(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{}
	runner := New(Options{Root: root, EnglishAudio: true}, dl, nil, nil)

	course := sampleCourse()
	stem := naming.Stem(course.Title, "Start", "U1. Introduction", 1, "Tools")
	dir, name := naming.TaskPaths(root, stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".mp4"), []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan := runner.Plan(course)
	if len(plan) != 4 {
		t.Fatalf("expected four plan entries, got %d", len(plan))
	}
	if plan[0].Outcome != "" || plan[0].Reason != "missing" {
		t.Fatalf("unexpected first entry %+v", plan[0])
	}
	if plan[1].Outcome != "" || plan[1].Reason != "audio_missing" {
		t.Fatalf("video without requested audio should download, got %+v", plan[1])
	}
	if plan[2].Outcome != history.TaskNoURL {
		t.Fatalf("expected no_url entry, got %+v", plan[2])
	}
	if dl.count() != 0 {
		t.Fatal("plan must not download")
	}
}

func TestRunAllContinuesPastCourseErrors(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{}
	runner := New(Options{Root: root}, dl, nil, nil)

	sources := []catalog.Source{
		{Label: "broken", Load: func(context.Context) (catalog.Course, error) {
			return catalog.Course{}, catalog.ErrNoCourseSchema
		}},
		{Label: "good", Load: func(context.Context) (catalog.Course, error) {
			return sampleCourse(), nil
		}},
	}

	batch, err := runner.RunAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].Label != "broken" || !errors.Is(batch.Errors[0].Err, catalog.ErrNoCourseSchema) {
		t.Fatalf("unexpected errors: %+v", batch.Errors)
	}
	if len(batch.Courses) != 1 || batch.Courses[0].Downloaded != 3 {
		t.Fatalf("unexpected courses: %+v", batch.Courses)
	}
}

func TestRunAllStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loaded := 0
	sources := []catalog.Source{
		{Label: "first", Load: func(context.Context) (catalog.Course, error) {
			loaded++
			cancel()
			return catalog.Course{}, context.Canceled
		}},
		{Label: "second", Load: func(context.Context) (catalog.Course, error) {
			loaded++
			return sampleCourse(), nil
		}},
	}
	runner := New(Options{Root: t.TempDir()}, &fakeDownloader{}, nil, nil)

	if _, err := runner.RunAll(ctx, sources); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if loaded != 1 {
		t.Fatalf("expected batch to stop after first source, loaded %d", loaded)
	}
}

func TestRunCourseReportsOnlyItsOwnReconcileStems(t *testing.T) {
	root := t.TempDir()
	recorder := &memoryRecorder{}
	merger := &writingMerger{}
	engine := reconcile.New(merger, reconcile.Options{Cleanup: false}, logging.NewNop())
	opts := Options{Root: root, EnglishAudio: true, Cleanup: false}
	runner := New(opts, &fakeDownloader{}, engine, logging.NewNop(), WithRecorder(recorder, "run-1"))

	course := func(title string) catalog.Course {
		return catalog.Course{
			Title: title,
			Units: []catalog.Unit{{
				Title: "U",
				Tasks: []catalog.Task{{PlaybackURL: "https://cdn.example/" + title + ".m3u8", Title: "Intro", Section: "S", UnitTitle: "U", Index: 0}},
			}},
		}
	}

	alpha, err := runner.RunCourse(context.Background(), course("Alpha"))
	if err != nil {
		t.Fatalf("RunCourse(Alpha) returned error: %v", err)
	}
	beta, err := runner.RunCourse(context.Background(), course("Beta"))
	if err != nil {
		t.Fatalf("RunCourse(Beta) returned error: %v", err)
	}

	// Alpha's originals stay in place, so the Beta pass sees them again.
	if alpha.Reconcile == nil || alpha.Reconcile.Merged != 1 || len(alpha.Reconcile.Stems) != 1 {
		t.Fatalf("unexpected Alpha reconcile result: %+v", alpha.Reconcile)
	}
	if beta.Reconcile == nil || beta.Reconcile.Merged != 1 || beta.Reconcile.AlreadyMerged != 0 || len(beta.Reconcile.Stems) != 1 {
		t.Fatalf("Beta result should only cover Beta's lessons: %+v", beta.Reconcile)
	}

	if len(recorder.reconciles) != 2 {
		t.Fatalf("expected one reconcile record per course, got %+v", recorder.reconciles)
	}
	for _, rec := range recorder.reconciles {
		if want := rec.Course + "/S/U/0_Intro"; rec.Stem != want {
			t.Fatalf("record for %q has stem %q, want %q", rec.Course, rec.Stem, want)
		}
	}
}
