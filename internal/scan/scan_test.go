package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"coursepull/internal/artifact"
)

func collect(t *testing.T, seq func(func(string, error) bool)) []string {
	t.Helper()
	var out []string
	for p, err := range seq {
		if err != nil {
			t.Fatalf("unexpected walk error at %s: %v", p, err)
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func sampleTree() fstest.MapFS {
	file := &fstest.MapFile{Data: []byte("x")}
	return fstest.MapFS{
		"C/S/U/0_A.mp4":                 file,
		"C/S/U/0_A.en.m4a":              file,
		"C/S/U/1_B.en.mp4":              file,
		"C/S/U/1_B.srt":                 file,
		"C/S/U/_cleanup_1_B/1_B.en.m4a": file,
		"C/S/V/deeper/2_C.en.m4a":       file,
		"_cleanup/_cleanup_9_Z/9_Z.mp4": file,
	}
}

func TestFilesYieldsAudioAtEveryDepth(t *testing.T) {
	got := collect(t, Files(sampleTree(), "root", Only(artifact.KindAudio)))
	want := []string{
		"root/C/S/U/0_A.en.m4a",
		"root/C/S/U/_cleanup_1_B/1_B.en.m4a",
		"root/C/S/V/deeper/2_C.en.m4a",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
}

func TestDirsYieldsCleanupMarkers(t *testing.T) {
	got := collect(t, Dirs(sampleTree(), "root", Only(artifact.KindCleanupMarker)))
	want := []string{
		"root/C/S/U/_cleanup_1_B",
		"root/_cleanup/_cleanup_9_Z",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Dirs = %v, want %v", got, want)
	}
}

func TestNilMatcherYieldsEverything(t *testing.T) {
	got := collect(t, Files(sampleTree(), ".", nil))
	if len(got) != len(sampleTree()) {
		t.Fatalf("expected %d files, got %d: %v", len(sampleTree()), len(got), got)
	}
}

func TestSequenceIsRestartable(t *testing.T) {
	seq := Files(sampleTree(), "root", Only(artifact.KindMerged))
	first := collect(t, seq)
	second := collect(t, seq)
	if !slices.Equal(first, second) || len(first) != 1 {
		t.Fatalf("restart mismatch: %v vs %v", first, second)
	}
}

func TestEarlyBreakStopsWalk(t *testing.T) {
	count := 0
	for range Files(sampleTree(), "root", nil) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected to stop after 2, got %d", count)
	}
}

func TestMissingRootYieldsNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	got := collect(t, FilesUnder(root, nil))
	if len(got) != 0 {
		t.Fatalf("expected no files, got %v", got)
	}
}

func TestFilesUnderLocalTree(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Course", "Section", "Unit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(dir, "0_Intro.en.m4a")
	if err := os.WriteFile(audio, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got []string
	for p, err := range FilesUnder(root, Only(artifact.KindAudio)) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, p)
	}
	if len(got) != 1 || got[0] != audio {
		t.Fatalf("FilesUnder = %v, want [%s]", got, audio)
	}
}

type failingFS struct {
	fstest.MapFS
}

func (f failingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name == "C/bad" {
		return nil, errBadDir
	}
	return f.MapFS.ReadDir(name)
}

var errBadDir = errors.New("permission denied")

func TestUnreadableDirectoryIsReportedAndSkipped(t *testing.T) {
	fsys := failingFS{fstest.MapFS{
		"C/bad/0_A.en.m4a":  &fstest.MapFile{Data: []byte("x")},
		"C/good/1_B.en.m4a": &fstest.MapFile{Data: []byte("x")},
	}}
	var paths []string
	var errs []error
	for p, err := range Files(fsys, "root", Only(artifact.KindAudio)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, filepath.ToSlash(p))
	}
	if len(errs) != 1 || !errors.Is(errs[0], errBadDir) {
		t.Fatalf("expected one errBadDir, got %v", errs)
	}
	if !slices.Equal(paths, []string{"root/C/good/1_B.en.m4a"}) {
		t.Fatalf("paths = %v", paths)
	}
}
