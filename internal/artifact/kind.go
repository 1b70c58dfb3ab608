package artifact

import (
	"path/filepath"
	"strings"
)

// Kind labels a path discovered under the download root.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindAudio
	KindMerged
	KindCleanupMarker
)

const (
	// VideoSuffix is the extension the downloader gives the video track.
	VideoSuffix = ".mp4"
	// AudioSuffix marks the separately fetched English audio track.
	AudioSuffix = ".en.m4a"
	// MergedSuffix marks a video whose audio was replaced by the English track.
	MergedSuffix = ".en.mp4"
	// CleanupPrefix starts the name of every per-lesson cleanup directory.
	CleanupPrefix = "_cleanup_"
	// ConsolidatedDir is the root-level directory cleanup directories are folded into.
	ConsolidatedDir = "_cleanup"
	// TempPrefix starts the name of an in-progress muxer output.
	TempPrefix = ".merge-"
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindMerged:
		return "merged"
	case KindCleanupMarker:
		return "cleanup"
	default:
		return "other"
	}
}

// Classify labels a single directory entry by its base name.
func Classify(name string, isDir bool) Kind {
	base := filepath.Base(name)
	if isDir {
		if strings.HasPrefix(base, CleanupPrefix) {
			return KindCleanupMarker
		}
		return KindOther
	}
	if strings.HasPrefix(base, TempPrefix) {
		return KindOther
	}
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, AudioSuffix):
		return KindAudio
	case strings.HasSuffix(lower, MergedSuffix):
		return KindMerged
	case strings.HasSuffix(lower, VideoSuffix):
		return KindVideo
	default:
		return KindOther
	}
}

// InCleanupTree reports whether any directory segment of rel (a path relative
// to the download root) is a cleanup directory or the consolidated root.
// The final segment is not inspected.
func InCleanupTree(rel string) bool {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || dir == "" {
		return false
	}
	for _, segment := range strings.Split(dir, "/") {
		if segment == ConsolidatedDir || strings.HasPrefix(segment, CleanupPrefix) {
			return true
		}
	}
	return false
}
