// Package catalog turns course pages into the ordered list of lessons a run
// downloads.
//
// Course structure comes from three places: live pages fetched over HTTP,
// HTML snapshots saved on disk, and hand-written TOML manifests. The first
// two go through the same HTML extraction (ParseCoursePage, ParseUnitPage);
// manifests skip it entirely. Every path yields a Course whose tasks are
// handed to the pipeline unchanged.
package catalog
