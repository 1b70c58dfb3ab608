package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"coursepull/internal/naming"
	"coursepull/internal/services"
)

func TestLoadManifest(t *testing.T) {
	manifest, err := LoadManifest(filepath.Join("testdata", "manifest.toml"))
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if len(manifest.Courses) != 2 {
		t.Fatalf("expected two courses, got %d", len(manifest.Courses))
	}

	course := manifest.Courses[0].Course()
	if course.Title != "Ink Drawing" {
		t.Fatalf("unexpected title %q", course.Title)
	}
	if len(course.Units) != 2 {
		t.Fatalf("expected unit plus final project, got %+v", course.Units)
	}
	tasks := course.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected three tasks, got %+v", tasks)
	}
	if tasks[0].Section != "Foundations" || tasks[0].UnitTitle != "Unit 1" || tasks[0].Index != 0 {
		t.Fatalf("unexpected first task %+v", tasks[0])
	}
	if tasks[1].HasURL() {
		t.Fatal("placeholder video should have no url")
	}
	final := tasks[2]
	if final.Section != naming.FinalProjectTitle || final.UnitTitle != naming.FinalProjectTitle || final.Title != naming.FinalProjectTitle {
		t.Fatalf("unexpected final project task %+v", final)
	}

	sources := manifest.Sources()
	if len(sources) != 2 || sources[1].Label != "Clay" {
		t.Fatalf("unexpected sources %+v", sources)
	}
	loaded, err := sources[0].Load(context.Background())
	if err != nil || loaded.Title != "Ink Drawing" {
		t.Fatalf("unexpected loaded course %+v err=%v", loaded, err)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	if _, err := LoadManifest(filepath.Join(dir, "absent.toml")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing file, got %v", err)
	}
	if _, err := LoadManifest(write("bad.toml", "[[course]\n")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad toml, got %v", err)
	}
	if _, err := LoadManifest(write("empty.toml", "")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty manifest, got %v", err)
	}
	untitled := "[[course]]\ntitle = \"A\"\n[[course.unit]]\ntitle = \"U\"\n[[course.unit.video]]\nplayback_url = \"x\"\n"
	if _, err := LoadManifest(write("untitled.toml", untitled)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for untitled video, got %v", err)
	}
}

func TestAppendFinalProjectIgnoresEmptyURL(t *testing.T) {
	var course Course
	course.AppendFinalProject("")
	if len(course.Units) != 0 {
		t.Fatalf("expected no units, got %+v", course.Units)
	}
}
