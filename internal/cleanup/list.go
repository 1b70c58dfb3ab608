package cleanup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirInfo contains metadata about a consolidated cleanup directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	Files   int
}

// ListDirectories returns the directories under the consolidated cleanup root,
// largest first. A missing root yields no entries.
func ListDirectories(root string) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}

	target := ConsolidatedRoot(root)
	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(target, entry.Name())
		size, files := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
			Files:   files,
		})
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		if dirs[i].Size != dirs[j].Size {
			return dirs[i].Size > dirs[j].Size
		}
		return dirs[i].Name < dirs[j].Name
	})
	return dirs, nil
}

// dirSize sums file sizes below path, best effort.
func dirSize(path string) (int64, int) {
	var size int64
	var files int
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files
}
