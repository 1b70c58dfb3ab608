package history

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// TaskOutcome records what happened to one download task.
type TaskOutcome string

const (
	TaskSkipped    TaskOutcome = "skipped"
	TaskDownloaded TaskOutcome = "downloaded"
	TaskFailed     TaskOutcome = "failed"
	TaskNoURL      TaskOutcome = "no_url"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       RunStatus
	English      bool
	DownloadRoot string
	ErrorMessage string

	Downloaded int
	Skipped    int
	Failed     int
	Merged     int
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TaskRecord is one download task decision.
type TaskRecord struct {
	Course       string
	Stem         string
	PlaybackURL  string
	Outcome      TaskOutcome
	Reason       string
	ErrorKind    string
	ErrorMessage string
	RecordedAt   time.Time
}

// ReconcileRecord is the reconciler outcome for one stem.
type ReconcileRecord struct {
	Course       string
	Stem         string
	Outcome      string
	Moved        int
	ErrorMessage string
	RecordedAt   time.Time
}
