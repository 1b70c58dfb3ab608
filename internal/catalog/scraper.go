package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"coursepull/internal/logging"
)

// Scraper builds courses by fetching a course page and each of its units.
type Scraper struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewScraper returns a scraper reading pages through fetcher.
func NewScraper(fetcher Fetcher, logger *slog.Logger) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "catalog"),
	}
}

// Course fetches courseURL and every unit it links to. Units are returned in
// page order with tasks indexed by their position inside the unit.
func (s *Scraper) Course(ctx context.Context, courseURL string) (Course, error) {
	body, err := s.fetcher.Fetch(ctx, courseURL)
	if err != nil {
		return Course{}, fmt.Errorf("fetch course page: %w", err)
	}
	page, err := ParseCoursePage(bytes.NewReader(body))
	if err != nil {
		return Course{}, fmt.Errorf("course %s: %w", courseURL, err)
	}

	course := Course{
		Title:          page.Title,
		URL:            courseURL,
		FinalProjectID: page.FinalProjectID,
	}
	logger := s.logger.With(logging.String(logging.FieldCourse, course.Title))
	logger.Info("course page parsed",
		logging.Int("units", len(page.Units)),
		logging.Bool("final_project_linked", page.FinalProjectID != ""),
	)

	for _, link := range page.Units {
		if err := ctx.Err(); err != nil {
			return Course{}, err
		}
		unitURL, err := resolveURL(courseURL, link.URL)
		if err != nil {
			return Course{}, fmt.Errorf("unit %q: %w", link.Title, err)
		}
		unitBody, err := s.fetcher.Fetch(ctx, unitURL)
		if err != nil {
			return Course{}, fmt.Errorf("fetch unit %q: %w", link.Title, err)
		}
		unitPage, err := ParseUnitPage(bytes.NewReader(unitBody))
		if err != nil {
			return Course{}, fmt.Errorf("unit %q: %w", link.Title, err)
		}

		unit := Unit{Title: link.Title, URL: unitURL}
		for i, video := range unitPage.Videos {
			unit.Tasks = append(unit.Tasks, Task{
				PlaybackURL: video.PlaybackURL,
				Title:       video.Title,
				Section:     unitPage.Section,
				UnitTitle:   link.Title,
				Index:       i,
			})
		}
		if len(unit.Tasks) == 0 {
			logger.Info("unit lists no videos", logging.String("unit", link.Title))
		} else {
			logger.Debug("unit parsed",
				logging.String("unit", link.Title),
				logging.String("section", unitPage.Section),
				logging.Int("videos", len(unit.Tasks)),
			)
		}
		course.Units = append(course.Units, unit)
	}

	if page.FinalProjectID != "" {
		logger.Info("final project video requires api credentials; skipping",
			logging.String("final_project_id", page.FinalProjectID),
		)
	}
	return course, nil
}

// Source wraps Course for courseURL as a lazily loaded source.
func (s *Scraper) Source(courseURL string) Source {
	return Source{
		Label: courseURL,
		Load: func(ctx context.Context) (Course, error) {
			return s.Course(ctx, courseURL)
		},
	}
}

// Sources wraps each URL as a source, skipping blanks.
func (s *Scraper) Sources(courseURLs []string) []Source {
	sources := make([]Source, 0, len(courseURLs))
	for _, raw := range courseURLs {
		if raw = strings.TrimSpace(raw); raw != "" {
			sources = append(sources, s.Source(raw))
		}
	}
	return sources
}

func resolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse unit url: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
