package preflight

import (
	"context"
	"strings"

	"coursepull/internal/config"
)

// MinFreeBytes is the free space below which the download root check fails.
const MinFreeBytes uint64 = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The course site is only probed when pages come from the network.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download root", cfg.Paths.DownloadRoot),
		CheckFreeSpace("Free space", cfg.Paths.DownloadRoot, MinFreeBytes),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if strings.TrimSpace(cfg.Courses.SnapshotDir) == "" && len(cfg.Courses.URLs) > 0 {
		results = append(results, CheckCourseSite(ctx, cfg.Courses, cfg.Courses.URLs[0]))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
