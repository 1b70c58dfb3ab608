package artifact

import "path/filepath"

// Set is the triple of candidate files for one stem.
type Set struct {
	Stem   string
	Video  string
	Audio  string
	Merged string
}

// SetFor derives the artifact paths for a stem. The stem may be a native path
// or a slash-separated fs.FS path; suffixes are appended verbatim.
func SetFor(stem string) Set {
	return Set{
		Stem:   stem,
		Video:  stem + VideoSuffix,
		Audio:  stem + AudioSuffix,
		Merged: stem + MergedSuffix,
	}
}

// FromAudio derives the set that owns an English audio file.
func FromAudio(audioPath string) (Set, bool) {
	if Classify(audioPath, false) != KindAudio {
		return Set{}, false
	}
	stem := audioPath[:len(audioPath)-len(AudioSuffix)]
	return SetFor(stem), true
}

// BaseName returns the final element of the stem, e.g. "0_Intro".
func (s Set) BaseName() string {
	return filepath.Base(s.Stem)
}

// CleanupDir returns the sibling directory the originals are relocated into.
func (s Set) CleanupDir() string {
	return filepath.Join(filepath.Dir(s.Stem), CleanupPrefix+s.BaseName())
}

// Originals lists the paths relocated after a successful merge.
func (s Set) Originals() []string {
	return []string{s.Audio, s.Video}
}

func (s Set) String() string {
	return s.BaseName()
}
