package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"coursepull/internal/artifact"
	"coursepull/internal/logging"
	"coursepull/internal/scan"
)

// Move records one consolidated directory.
type Move struct {
	From string
	To   string
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// ConsolidateResult contains the outcome of a consolidation pass.
type ConsolidateResult struct {
	Moved  []Move
	Errors []CleanupError
}

// ConsolidatedRoot returns "<root>/_cleanup".
func ConsolidatedRoot(root string) string {
	return filepath.Join(root, artifact.ConsolidatedDir)
}

// Consolidate moves every cleanup directory under root (outside the
// consolidated root) into ConsolidatedRoot(root), keeping its base name.
// When the name is taken the destination is qualified with the course
// directory ("<base>__<course>") and then numbered ("__2", "__3", ...).
// Per-directory failures are collected and logged; the pass continues.
func Consolidate(ctx context.Context, root string, logger *slog.Logger) (ConsolidateResult, error) {
	result := ConsolidateResult{}
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "consolidate"))

	sources, scanErrs := findCleanupDirs(root)
	for _, scanErr := range scanErrs {
		result.Errors = append(result.Errors, scanErr)
		logging.WarnWithContext(logger, "directory unreadable during consolidation", "consolidate_scan_failed",
			logging.String("path", scanErr.Path),
			logging.Error(scanErr.Error),
			logging.String(logging.FieldImpact, "cleanup directories below it stay in place"),
		)
	}
	if len(sources) == 0 {
		return result, nil
	}

	target := ConsolidatedRoot(root)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return result, fmt.Errorf("create %s: %w", target, err)
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		dest, err := consolidatedName(root, src)
		if err == nil {
			err = os.Rename(src, dest)
		}
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: src, Error: err})
			logging.WarnWithContext(logger, "cleanup directory not consolidated", "consolidate_failed",
				logging.String("path", src),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the download root"),
				logging.String(logging.FieldImpact, "directory stays next to its lesson"),
			)
			continue
		}
		result.Moved = append(result.Moved, Move{From: src, To: dest})
		logger.Info("cleanup directory consolidated",
			logging.String(logging.FieldEventType, "consolidated"),
			logging.String("from", src),
			logging.String("to", dest),
		)
	}
	return result, nil
}

// findCleanupDirs snapshots the cleanup directories to move, in walk order,
// without duplicates and excluding anything already inside a cleanup tree.
func findCleanupDirs(root string) ([]string, []CleanupError) {
	var dirs []string
	var errs []CleanupError
	seen := make(map[string]struct{})
	for path, err := range scan.DirsUnder(root, scan.Only(artifact.KindCleanupMarker)) {
		if err != nil {
			errs = append(errs, CleanupError{Path: path, Error: err})
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || artifact.InCleanupTree(rel) {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		dirs = append(dirs, path)
	}
	return dirs, errs
}

// consolidatedName picks a destination under the consolidated root that does
// not exist yet.
func consolidatedName(root, src string) (string, error) {
	target := ConsolidatedRoot(root)
	base := filepath.Base(src)

	candidate := filepath.Join(target, base)
	if free, err := isFree(candidate); err != nil || free {
		return candidate, err
	}

	qualified := base
	if course := courseSegment(root, src); course != "" {
		qualified = base + "__" + course
		candidate = filepath.Join(target, qualified)
		if free, err := isFree(candidate); err != nil || free {
			return candidate, err
		}
	}

	for n := 2; ; n++ {
		candidate = filepath.Join(target, qualified+"__"+strconv.Itoa(n))
		if free, err := isFree(candidate); err != nil || free {
			return candidate, err
		}
	}
}

// courseSegment returns the first path segment of src below root when src
// lives inside a course directory.
func courseSegment(root, src string) string {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, err
	}
}
