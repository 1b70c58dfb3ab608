package deps

import (
	"os"
	"path/filepath"
	"testing"

	"coursepull/internal/config"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestResolveDownloaderPrefersWorkingDirectory(t *testing.T) {
	work := t.TempDir()
	binDir := t.TempDir()
	writeStub(t, filepath.Join(work, executableName("N_m3u8DL-RE")))
	writeStub(t, filepath.Join(binDir, executableName("N_m3u8DL-RE")))
	t.Chdir(work)
	t.Setenv("PATH", binDir)

	status := ResolveDownloader("")
	if !status.Available {
		t.Fatalf("expected downloader available, got %q", status.Detail)
	}
	if filepath.Dir(status.Command) != work {
		resolvedWork, _ := filepath.EvalSymlinks(work)
		resolvedCmd, _ := filepath.EvalSymlinks(filepath.Dir(status.Command))
		if resolvedWork != resolvedCmd {
			t.Fatalf("expected working directory binary, got %q", status.Command)
		}
	}
}

func TestResolveDownloaderFallsBackToPath(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, executableName("N_m3u8DL-RE")))
	t.Chdir(t.TempDir())
	t.Setenv("PATH", binDir)

	status := ResolveDownloader("N_m3u8DL-RE")
	if !status.Available {
		t.Fatalf("expected downloader on PATH, got %q", status.Detail)
	}
	if status.Command != filepath.Join(binDir, executableName("N_m3u8DL-RE")) {
		t.Fatalf("unexpected command %q", status.Command)
	}
}

func TestResolveDownloaderExplicitPath(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "tools", executableName("dl"))
	writeStub(t, custom)

	status := ResolveDownloader(custom)
	if !status.Available || status.Command != custom {
		t.Fatalf("expected explicit path to resolve, got %#v", status)
	}

	missing := ResolveDownloader(filepath.Join(t.TempDir(), "nope"))
	if missing.Available || missing.Detail == "" {
		t.Fatalf("expected missing explicit path, got %#v", missing)
	}
}

func TestResolveDownloaderMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATH", t.TempDir())

	status := ResolveDownloader("")
	if status.Available {
		t.Fatal("expected downloader to be unavailable")
	}
	if status.Detail == "" {
		t.Fatal("expected detail pointing at the releases page")
	}
}

func TestCheckMarksFFmpegOptionalWithoutEnglishAudio(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATH", t.TempDir())

	cfg := config.Default()
	cfg.Audio.English = false
	statuses := Check(&cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected two statuses, got %d", len(statuses))
	}
	if !statuses[1].Optional {
		t.Fatal("ffmpeg should be optional without english audio")
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "N_m3u8DL-RE" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}

	cfg.Audio.English = true
	if missing := Missing(Check(&cfg)); len(missing) != 2 {
		t.Fatalf("expected ffmpeg to be required with english audio, got %#v", missing)
	}
}
