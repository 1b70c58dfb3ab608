package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursepull/internal/config"
	"coursepull/internal/history"
	"coursepull/internal/naming"
	"coursepull/internal/pipeline"
	"coursepull/internal/testsupport"
)

// fakeDownloader writes the video file for video passes and nothing for
// subtitle passes.
const fakeDownloader = `dir=""
name=""
video=0
while [ $# -gt 0 ]; do
  case "$1" in
    --save-dir) dir="$2"; shift ;;
    --save-name) name="$2"; shift ;;
    -sv) video=1 ;;
  esac
  shift
done
if [ "$video" = 1 ]; then
  : > "$dir/$name.mp4"
fi
exit 0
`

const runManifest = `[[course]]
title = "Ink Drawing"

[[course.unit]]
title = "Unit 1"
section = "Foundations"

[[course.unit.video]]
title = "Pens"
playback_url = "https://cdn.example.org/ink/0.m3u8"

[[course.unit.video]]
title = "Placeholder"
`

func setupRunEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLITestEnv(t)
	env.cfg.Downloader.Binary = writeScript(t, filepath.Join(env.baseDir, "bin", "N_m3u8DL-RE"), fakeDownloader)
	manifest := filepath.Join(env.baseDir, "courses.toml")
	if err := os.WriteFile(manifest, []byte(runManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	env.cfg.Courses.Manifest = manifest
	env.writeConfig(t)
	return env
}

func TestRunCommandDownloadsThenSkips(t *testing.T) {
	env := setupRunEnv(t)
	video := naming.Resolve(env.cfg.Paths.DownloadRoot,
		naming.Stem("Ink Drawing", "Foundations", "Unit 1", 0, "Pens")) + ".mp4"

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "Ink Drawing")
	requireContains(t, out, "completed")
	requireExists(t, video)

	out, _, err = runCLI(t, []string{"plan"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "0 to download")
	requireContains(t, out, "already_downloaded")

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("second run: %v", err)
	}

	store := testsupport.MustOpenHistory(t, env.cfg)
	runs, err := store.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	latest, first := runs[0], runs[1]
	if first.Downloaded != 1 || first.Skipped != 0 {
		t.Fatalf("first run counts: %+v", first)
	}
	if latest.Downloaded != 0 || latest.Skipped != 1 {
		t.Fatalf("second run counts: %+v", latest)
	}
	for _, run := range runs {
		if run.Status != history.RunStatusCompleted {
			t.Fatalf("run %s status %s", run.ID, run.Status)
		}
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, shortID(latest.ID))

	out, _, err = runCLI(t, []string{"history", "--run", first.ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, out, "downloaded")
	requireContains(t, out, "no_url")
}

func TestRunCommandFailsWithoutDownloader(t *testing.T) {
	env := setupRunEnv(t)
	env.cfg.Downloader.Binary = filepath.Join(env.baseDir, "nowhere", "N_m3u8DL-RE")
	env.writeConfig(t)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing dependency error")
	}
	requireContains(t, err.Error(), "N_m3u8DL-RE")
	if _, statErr := os.Stat(env.cfg.HistoryPath()); statErr == nil {
		store := testsupport.MustOpenHistory(t, env.cfg)
		runs, _ := store.RecentRuns(context.Background(), 1)
		if len(runs) != 0 {
			t.Fatalf("no run should be recorded, got %d", len(runs))
		}
	}
}

func TestRunCommandRequiresCourses(t *testing.T) {
	env := setupRunEnv(t)
	env.cfg.Courses.Manifest = ""
	env.writeConfig(t)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, errNoCourses) {
		t.Fatalf("expected errNoCourses, got %v", err)
	}
}

func TestRunCommandEnglishRequiresFFmpeg(t *testing.T) {
	env := setupRunEnv(t)
	env.cfg.Muxer.FFmpegBinary = filepath.Join(env.baseDir, "nowhere", "ffmpeg")
	env.writeConfig(t)

	_, _, err := runCLI(t, []string{"run", "eng"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing ffmpeg error")
	}
	requireContains(t, err.Error(), "FFmpeg")
}

func TestSourceFlagsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Courses.URLs = []string{"https://example.org/configured"}

	var flags sourceFlags
	if err := flags.apply(&cfg, []string{"https://example.org/a", " ENG ", ""}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !cfg.Audio.English {
		t.Fatal("positional eng should enable English audio")
	}
	if len(cfg.Courses.URLs) != 1 || cfg.Courses.URLs[0] != "https://example.org/a" {
		t.Fatalf("positional urls should replace configured ones, got %v", cfg.Courses.URLs)
	}

	cfg = config.Default()
	cfg.Courses.URLs = []string{"https://example.org/configured"}
	flags = sourceFlags{snapshots: t.TempDir()}
	if err := flags.apply(&cfg, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Audio.English || len(cfg.Courses.URLs) != 1 || cfg.Courses.SnapshotDir == "" {
		t.Fatalf("unexpected config after flags: %+v", cfg.Courses)
	}
}

func TestRunOutcome(t *testing.T) {
	status, err := runOutcome(pipeline.BatchResult{}, nil)
	if status != history.RunStatusCompleted || err != nil {
		t.Fatalf("clean batch: %s %v", status, err)
	}

	status, err = runOutcome(pipeline.BatchResult{}, context.Canceled)
	if status != history.RunStatusCancelled || !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled batch: %s %v", status, err)
	}

	batch := pipeline.BatchResult{Errors: []pipeline.CourseError{{Label: "Ink", Err: errors.New("boom")}}}
	status, err = runOutcome(batch, nil)
	if status != history.RunStatusFailed || err == nil || !strings.Contains(err.Error(), "Ink") {
		t.Fatalf("failed batch: %s %v", status, err)
	}
}

func TestLogsCommandShowsLatestRunLog(t *testing.T) {
	env := setupRunEnv(t)
	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "200"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "run started")
	requireContains(t, out, "INFO")

	out, _, err = runCLI(t, []string{"logs", "--level", "warn", "-n", "200"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	if strings.Contains(out, "run started") {
		t.Fatalf("info records should be filtered, got %q", out)
	}
}
