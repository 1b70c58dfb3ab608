// Package naming defines the on-disk layout for downloaded lessons.
//
// A lesson track is identified by its stem: the slash-separated path
// "<course>/<section>/<unit>/<index>_<track>" relative to the download root.
// Every other component (the existence gate, the reconciler, the history
// ledger) derives file names from the stem, so the functions here must stay
// pure and stable across releases: a renamed stem makes a previous run's
// output invisible to the next one.
package naming

import (
	"path"
	"path/filepath"
	"strconv"

	"coursepull/internal/textutil"
)

// FinalProjectTitle names the unit and section the scraper uses for the
// optional final-project lesson.
const FinalProjectTitle = "Final project"

// emptySegment stands in for a component that sanitizes to nothing so the
// stem never contains an empty path segment.
const emptySegment = "_"

// Key holds the raw titles that identify one lesson track.
type Key struct {
	Course  string
	Section string
	Unit    string
	Index   int
	Track   string
}

// Stem returns the canonical relative path stem for the key.
func (k Key) Stem() string {
	return Stem(k.Course, k.Section, k.Unit, k.Index, k.Track)
}

// Stem maps the titles of a lesson track to "<course>/<section>/<unit>/<index>_<track>".
// Course and section titles are sanitized; unit and track titles additionally
// lose their dots.
func Stem(courseTitle, section, unitTitle string, index int, trackTitle string) string {
	return path.Join(UnitDir(courseTitle, section, unitTitle), SaveName(index, trackTitle))
}

// UnitDir returns the slash-separated directory that holds every track of a unit.
func UnitDir(courseTitle, section, unitTitle string) string {
	return path.Join(
		segment(textutil.SanitizeSegment(courseTitle)),
		segment(textutil.SanitizeSegment(section)),
		segment(textutil.SanitizeTitle(unitTitle)),
	)
}

// CourseDir returns the directory name used for a course title.
func CourseDir(courseTitle string) string {
	return segment(textutil.SanitizeSegment(courseTitle))
}

// SaveName returns the base name (without extension) of a track.
func SaveName(index int, trackTitle string) string {
	return strconv.Itoa(index) + "_" + textutil.SanitizeTitle(trackTitle)
}

// Resolve converts a slash-separated stem into a native path under root.
func Resolve(root, stem string) string {
	return filepath.Join(root, filepath.FromSlash(stem))
}

// TaskPaths resolves a stem under root and returns the directory the
// downloader saves into plus the save name it is given.
func TaskPaths(root, stem string) (dir, name string) {
	full := Resolve(root, stem)
	return filepath.Dir(full), filepath.Base(full)
}

func segment(value string) string {
	switch value {
	case "", ".", "..":
		return emptySegment
	}
	return value
}
