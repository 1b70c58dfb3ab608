// Package scan walks a download tree lazily and yields the artifacts callers
// ask for.
//
// Each call returns a fresh iterator backed by fs.WalkDir, so a sequence can
// be ranged over more than once and never shares state with another walk.
// The walk is depth-first pre-order and descends into every directory,
// including cleanup directories; callers filter those out when needed.
package scan

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"coursepull/internal/artifact"
)

// Matcher selects which kinds a walk yields.
type Matcher func(artifact.Kind) bool

// Only matches the listed kinds.
func Only(kinds ...artifact.Kind) Matcher {
	return func(kind artifact.Kind) bool {
		for _, k := range kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
}

// Files yields non-directory entries of fsys whose kind satisfies match.
// Paths are joined under root in native form. A missing root yields nothing.
// Errors reading a subdirectory are yielded with that directory's path and
// the walk continues.
func Files(fsys fs.FS, root string, match Matcher) iter.Seq2[string, error] {
	return walk(fsys, root, false, match)
}

// Dirs is Files for directories. The root itself is never yielded.
func Dirs(fsys fs.FS, root string, match Matcher) iter.Seq2[string, error] {
	return walk(fsys, root, true, match)
}

// FilesUnder walks the directory root on the local filesystem.
func FilesUnder(root string, match Matcher) iter.Seq2[string, error] {
	return Files(os.DirFS(root), root, match)
}

// DirsUnder walks the directory root on the local filesystem.
func DirsUnder(root string, match Matcher) iter.Seq2[string, error] {
	return Dirs(os.DirFS(root), root, match)
}

func walk(fsys fs.FS, root string, wantDirs bool, match Matcher) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_ = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == "." && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipAll
				}
				if !yield(filepath.Join(root, filepath.FromSlash(p)), err) {
					return fs.SkipAll
				}
				return nil
			}
			if p == "." || d.IsDir() != wantDirs {
				return nil
			}
			if match != nil && !match(artifact.Classify(d.Name(), d.IsDir())) {
				return nil
			}
			if !yield(filepath.Join(root, filepath.FromSlash(p)), nil) {
				return fs.SkipAll
			}
			return nil
		})
	}
}
