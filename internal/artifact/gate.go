package artifact

import (
	"io/fs"
	"path"
)

// Action is the outcome of the existence gate.
type Action int

const (
	ActionDownload Action = iota
	ActionSkip
)

func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "download"
}

// Decision reasons recorded in logs and the history ledger.
const (
	ReasonAlreadyMerged     = "already_merged"
	ReasonAlreadyDownloaded = "already_downloaded"
	ReasonMissing           = "missing"
	ReasonAudioMissing      = "audio_missing"
)

// Decision pairs an action with the rule that produced it.
type Decision struct {
	Action Action
	Reason string
}

// Presence reports which members of a set exist.
type Presence struct {
	Video  bool
	Audio  bool
	Merged bool
}

// State summarises a set for display.
type State string

const (
	StateMissing   State = "missing"
	StatePending   State = "pending"
	StateMerged    State = "merged"
	StateRelocated State = "relocated"
)

// Probe checks which artifacts exist for a slash-separated stem in fsys.
func Probe(fsys fs.FS, stem string) Presence {
	set := SetFor(stem)
	return Presence{
		Video:  fileExists(fsys, set.Video),
		Audio:  fileExists(fsys, set.Audio),
		Merged: fileExists(fsys, set.Merged),
	}
}

// Decide is the existence gate. A merged file always wins; otherwise the plain
// video suffices unless English audio was requested and is still missing.
func Decide(fsys fs.FS, stem string, wantsEnglishAudio bool) Decision {
	return DecidePresence(Probe(fsys, stem), wantsEnglishAudio)
}

// DecidePresence applies the gate rules to an already probed set.
func DecidePresence(p Presence, wantsEnglishAudio bool) Decision {
	switch {
	case p.Merged:
		return Decision{Action: ActionSkip, Reason: ReasonAlreadyMerged}
	case p.Video && (!wantsEnglishAudio || p.Audio):
		return Decision{Action: ActionSkip, Reason: ReasonAlreadyDownloaded}
	case p.Video:
		return Decision{Action: ActionDownload, Reason: ReasonAudioMissing}
	default:
		return Decision{Action: ActionDownload, Reason: ReasonMissing}
	}
}

// Inspect derives the display state of a stem, looking into its cleanup
// directory to tell a relocated set from a merged one.
func Inspect(fsys fs.FS, stem string) State {
	p := Probe(fsys, stem)
	switch {
	case p.Merged && !p.Video && !p.Audio:
		cleanup := path.Join(path.Dir(stem), CleanupPrefix+path.Base(stem))
		if info, err := fs.Stat(fsys, cleanup); err == nil && info.IsDir() {
			return StateRelocated
		}
		return StateMerged
	case p.Merged:
		return StateMerged
	case p.Video || p.Audio:
		return StatePending
	default:
		return StateMissing
	}
}

func fileExists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
