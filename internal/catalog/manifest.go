package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"coursepull/internal/services"
)

// Manifest is a hand-written course list.
//
//	[[course]]
//	title = "Watercolor Basics"
//	final_project_url = "https://cdn.example/final.m3u8"
//
//	[[course.unit]]
//	title = "Unit 1"
//	section = "Introduction"
//
//	[[course.unit.video]]
//	title = "Welcome"
//	playback_url = "https://cdn.example/0.m3u8"
type Manifest struct {
	Courses []ManifestCourse `toml:"course"`
}

// ManifestCourse is one [[course]] table.
type ManifestCourse struct {
	Title           string         `toml:"title"`
	URL             string         `toml:"url"`
	FinalProjectURL string         `toml:"final_project_url"`
	Units           []ManifestUnit `toml:"unit"`
}

// ManifestUnit is one [[course.unit]] table.
type ManifestUnit struct {
	Title   string          `toml:"title"`
	Section string          `toml:"section"`
	Videos  []ManifestVideo `toml:"video"`
}

// ManifestVideo is one [[course.unit.video]] table.
type ManifestVideo struct {
	Title       string `toml:"title"`
	PlaybackURL string `toml:"playback_url"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "catalog", "manifest", "read "+path, err)
	}
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return Manifest{}, services.Wrap(services.ErrConfiguration, "catalog", "manifest",
				fmt.Sprintf("%s:%d:%d", path, row, col), err)
		}
		return Manifest{}, services.Wrap(services.ErrConfiguration, "catalog", "manifest", "parse "+path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate checks that every course, unit, and video is titled.
func (m Manifest) Validate() error {
	if len(m.Courses) == 0 {
		return services.Wrap(services.ErrValidation, "catalog", "manifest", "no [[course]] entries", nil)
	}
	for i, course := range m.Courses {
		if strings.TrimSpace(course.Title) == "" {
			return services.Wrap(services.ErrValidation, "catalog", "manifest", fmt.Sprintf("course %d has no title", i+1), nil)
		}
		for j, unit := range course.Units {
			if strings.TrimSpace(unit.Title) == "" {
				return services.Wrap(services.ErrValidation, "catalog", "manifest",
					fmt.Sprintf("course %q unit %d has no title", course.Title, j+1), nil)
			}
			for k, video := range unit.Videos {
				if strings.TrimSpace(video.Title) == "" {
					return services.Wrap(services.ErrValidation, "catalog", "manifest",
						fmt.Sprintf("course %q unit %q video %d has no title", course.Title, unit.Title, k+1), nil)
				}
			}
		}
	}
	return nil
}

// Course converts a manifest entry into a Course.
func (c ManifestCourse) Course() Course {
	course := Course{
		Title: strings.TrimSpace(c.Title),
		URL:   strings.TrimSpace(c.URL),
	}
	for _, mu := range c.Units {
		unit := Unit{Title: strings.TrimSpace(mu.Title)}
		for i, video := range mu.Videos {
			unit.Tasks = append(unit.Tasks, Task{
				PlaybackURL: strings.TrimSpace(video.PlaybackURL),
				Title:       strings.TrimSpace(video.Title),
				Section:     strings.TrimSpace(mu.Section),
				UnitTitle:   unit.Title,
				Index:       i,
			})
		}
		course.Units = append(course.Units, unit)
	}
	course.AppendFinalProject(strings.TrimSpace(c.FinalProjectURL))
	return course
}

// Sources returns one source per manifest course.
func (m Manifest) Sources() []Source {
	sources := make([]Source, 0, len(m.Courses))
	for _, entry := range m.Courses {
		course := entry.Course()
		sources = append(sources, Source{
			Label: course.Title,
			Load: func(context.Context) (Course, error) {
				return course, nil
			},
		})
	}
	return sources
}
