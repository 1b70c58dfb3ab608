package catalog

import (
	"context"

	"coursepull/internal/naming"
)

// Task is one lesson video to download.
type Task struct {
	PlaybackURL string
	Title       string
	Section     string
	UnitTitle   string
	Index       int
}

// HasURL reports whether the task has anything to download.
func (t Task) HasURL() bool {
	return t.PlaybackURL != ""
}

// Unit groups the tasks downloaded together before the next unit starts.
type Unit struct {
	Title string
	URL   string
	Tasks []Task
}

// Course is a fully resolved course ready for the pipeline.
type Course struct {
	Title          string
	URL            string
	FinalProjectID string
	Units          []Unit
}

// TaskCount returns the number of tasks across all units.
func (c Course) TaskCount() int {
	total := 0
	for _, unit := range c.Units {
		total += len(unit.Tasks)
	}
	return total
}

// Tasks returns every task in download order.
func (c Course) Tasks() []Task {
	tasks := make([]Task, 0, c.TaskCount())
	for _, unit := range c.Units {
		tasks = append(tasks, unit.Tasks...)
	}
	return tasks
}

// AppendFinalProject adds the final-project lesson as the last unit.
func (c *Course) AppendFinalProject(playbackURL string) {
	if playbackURL == "" {
		return
	}
	c.Units = append(c.Units, Unit{
		Title: naming.FinalProjectTitle,
		Tasks: []Task{{
			PlaybackURL: playbackURL,
			Title:       naming.FinalProjectTitle,
			Section:     naming.FinalProjectTitle,
			UnitTitle:   naming.FinalProjectTitle,
			Index:       0,
		}},
	})
}

// Source produces one course on demand. Label identifies it in logs before
// the course title is known.
type Source struct {
	Label string
	Load  func(ctx context.Context) (Course, error)
}
