package logging

import "strings"

// ProgressSampler suppresses repetitive downloader progress lines while still
// reporting each track whenever its percentage crosses a bucket boundary.
// Tracks (e.g. "Vid 1920x1080", "Aud en") are sampled independently because
// the downloader interleaves their progress output.
type ProgressSampler struct {
	bucketSize float64
	last       map[string]int
}

// NewProgressSampler constructs a sampler that emits when a track's percent
// crosses bucket boundaries (default 10%) or when a track is first seen.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, last: make(map[string]int)}
}

// ShouldLog reports whether a progress update for track should be logged.
// A negative percent means unknown and only logs the first sighting of a track.
func (s *ProgressSampler) ShouldLog(track string, percent float64) bool {
	if s == nil {
		return true
	}
	track = strings.TrimSpace(track)
	last, seen := s.last[track]
	if !seen {
		last = -1
		s.last[track] = last
	}
	if percent < 0 {
		return !seen
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > last {
		s.last[track] = bucket
		return true
	}
	return !seen
}

// Reset forgets every track (e.g. when a new lesson starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	clear(s.last)
}
