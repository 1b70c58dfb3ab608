package downloader

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgressUpdate is one parsed progress line of a track.
type ProgressUpdate struct {
	Track   string
	Percent float64
}

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// ParseProgress extracts the track label and percentage from a downloader
// progress line such as "Vid 1920x1080 | 4012 Kbps ━━━━ 120/540 22.22% ...".
func ParseProgress(line string) (ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	kind, _, _ := strings.Cut(line, " ")
	switch kind {
	case "Vid", "Aud", "Sub":
	default:
		return ProgressUpdate{}, false
	}
	matches := percentPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return ProgressUpdate{}, false
	}

	track := line
	if idx := strings.IndexAny(track, "|━"); idx >= 0 {
		track = track[:idx]
	}
	track = strings.Join(strings.Fields(track), " ")
	return ProgressUpdate{Track: track, Percent: percent}, true
}
