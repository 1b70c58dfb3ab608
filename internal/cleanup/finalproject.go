package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"coursepull/internal/logging"
	"coursepull/internal/naming"
)

// FinalProjectDir returns the final-project directory of a course.
func FinalProjectDir(root, courseTitle string) string {
	return filepath.Join(root, naming.CourseDir(courseTitle), naming.FinalProjectTitle)
}

// RemoveEmptyFinalProject removes the course's final-project directory when it
// exists and has no entries. It reports whether the directory was removed.
// A missing or non-empty directory is left alone and is not an error.
func RemoveEmptyFinalProject(root, courseTitle string, logger *slog.Logger) (bool, error) {
	dir := FinalProjectDir(root, courseTitle)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read final project directory: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}
	// os.Remove refuses non-empty directories, so a file created since the
	// ReadDir above is never lost.
	if err := os.Remove(dir); err != nil {
		return false, fmt.Errorf("remove empty final project directory: %w", err)
	}
	if logger != nil {
		logger.Info("removed empty final project directory",
			logging.String(logging.FieldComponent, "cleanup"),
			logging.String(logging.FieldEventType, "final_project_removed"),
			logging.String("path", dir),
		)
	}
	return true, nil
}
