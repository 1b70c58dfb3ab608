package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	unitLinkSelector = "h4.h2.unit-item__title a"
	sectionSelector  = "h2.h3.course-header-new__subtitle"
	ldJSONSelector   = `script[type="application/ld+json"]`
	propsMarker      = "__INITIAL_PROPS__"
)

// ErrNoCourseSchema is returned when a course page carries no schema.org
// Course entry to take the title from.
var ErrNoCourseSchema = errors.New("course page has no schema.org Course entry")

var finalProjectPattern = regexp.MustCompile(`courses/(.*?)-*/final_project`)

// UnitLink is a unit reference found on a course page.
type UnitLink struct {
	Title string
	URL   string
}

// CoursePage is the data extracted from a course landing page.
type CoursePage struct {
	Title          string
	Units          []UnitLink
	FinalProjectID string
}

// Video is one lesson listed in a unit page's embedded props.
type Video struct {
	PlaybackURL string
	Title       string
}

// UnitPage is the data extracted from a unit page.
type UnitPage struct {
	Section string
	Videos  []Video
}

// ParseCoursePage extracts the course title, unit links, and final-project id.
func ParseCoursePage(r io.Reader) (CoursePage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return CoursePage{}, fmt.Errorf("parse course page: %w", err)
	}

	schema, ok := findSchema(doc, "Course")
	if !ok {
		return CoursePage{}, ErrNoCourseSchema
	}
	name, _ := schema["name"].(string)
	page := CoursePage{Title: strings.TrimSpace(name)}
	if page.Title == "" {
		return CoursePage{}, fmt.Errorf("%w: entry has no name", ErrNoCourseSchema)
	}

	doc.Find(unitLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if match := finalProjectPattern.FindStringSubmatch(href); match != nil {
			if page.FinalProjectID == "" {
				id, _, _ := strings.Cut(match[1], "-")
				page.FinalProjectID = id
			}
			return
		}
		page.Units = append(page.Units, UnitLink{
			Title: strings.TrimSpace(s.Text()),
			URL:   strings.TrimSpace(href),
		})
	})
	return page, nil
}

// findSchema returns the first schema.org ld+json entry of the given type.
// Script bodies may hold one entry or an array; malformed JSON is skipped.
func findSchema(doc *goquery.Document, schemaType string) (map[string]any, bool) {
	var found map[string]any
	doc.Find(ldJSONSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var parsed any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &parsed); err != nil {
			return true
		}
		candidates, ok := parsed.([]any)
		if !ok {
			candidates = []any{parsed}
		}
		for _, candidate := range candidates {
			entry, ok := candidate.(map[string]any)
			if !ok {
				continue
			}
			schemaContext, _ := entry["@context"].(string)
			kind, _ := entry["@type"].(string)
			if strings.Contains(schemaContext, "schema.org") && kind == schemaType {
				found = entry
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// ParseUnitPage extracts the section title and the lesson videos. A page
// without usable props yields zero videos rather than an error.
func ParseUnitPage(r io.Reader) (UnitPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return UnitPage{}, fmt.Errorf("parse unit page: %w", err)
	}

	page := UnitPage{
		Section: strings.TrimSpace(doc.Find(sectionSelector).First().Text()),
	}

	var props initialProps
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if !strings.Contains(body, propsMarker) {
			return true
		}
		parsed, err := decodeInitialProps(body)
		if err != nil {
			return true
		}
		props = parsed
		return false
	})

	for _, entry := range props.Videos {
		if entry.Video == nil {
			continue
		}
		page.Videos = append(page.Videos, Video{
			PlaybackURL: strings.TrimSpace(entry.Video.PlaybackURL),
			Title:       strings.TrimSpace(entry.Video.Title),
		})
	}
	return page, nil
}

type initialProps struct {
	Videos []struct {
		Video *struct {
			PlaybackURL string `json:"playbackURL"`
			Title       string `json:"title"`
		} `json:"video"`
	} `json:"videos"`
}

// decodeInitialProps reads the value assigned to window.__INITIAL_PROPS__,
// either an object literal or a JSON.parse("...") call.
func decodeInitialProps(script string) (initialProps, error) {
	var props initialProps
	_, rest, ok := strings.Cut(script, propsMarker)
	if !ok {
		return props, errors.New("props marker not found")
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "=") {
		return props, errors.New("props are not assigned")
	}
	rest = strings.TrimSpace(rest[1:])

	if strings.HasPrefix(rest, "JSON.parse(") {
		literal := strings.TrimSpace(strings.TrimPrefix(rest, "JSON.parse("))
		var inner string
		if err := json.NewDecoder(strings.NewReader(jsStringToJSON(literal))).Decode(&inner); err != nil {
			return props, fmt.Errorf("decode props string: %w", err)
		}
		rest = inner
	}

	if err := json.NewDecoder(strings.NewReader(rest)).Decode(&props); err != nil {
		return props, fmt.Errorf("decode props: %w", err)
	}
	return props, nil
}

// jsStringToJSON converts a leading JavaScript string literal into a JSON
// string literal: single quotes become double quotes and \xNN escapes become
// \u00NN. Text after the literal is dropped.
func jsStringToJSON(literal string) string {
	if literal == "" {
		return literal
	}
	quote := literal[0]
	if quote != '"' && quote != '\'' {
		return literal
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 1; i < len(literal); i++ {
		c := literal[i]
		switch {
		case c == '\\' && i+1 < len(literal):
			next := literal[i+1]
			switch next {
			case 'x':
				b.WriteString(`\u00`)
			case '\'':
				b.WriteByte('\'')
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case c == quote:
			b.WriteByte('"')
			return b.String()
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
