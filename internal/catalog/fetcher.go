package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursepull/internal/config"
	"coursepull/internal/services"
)

const maxPageBytes = 16 << 20

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// HTTPFetcher downloads pages with a plain GET, optionally sending a
// user-supplied cookie header.
type HTTPFetcher struct {
	Client    *http.Client
	Cookie    string
	UserAgent string
}

// NewHTTPFetcher builds an HTTPFetcher from the [courses] settings.
func NewHTTPFetcher(cfg config.Courses) *HTTPFetcher {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		Cookie:    strings.TrimSpace(cfg.Cookie),
		UserAgent: strings.TrimSpace(cfg.UserAgent),
	}
}

// Fetch performs the GET and returns the body of a 2xx response.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "fetch", "build request", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if f.Cookie != "" {
		req.Header.Set("Cookie", f.Cookie)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "fetch", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "catalog", "fetch", fmt.Sprintf("%s returned status %d", pageURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "fetch", "read body", err)
	}
	return body, nil
}

// DirFetcher serves pages from a directory of saved snapshots laid out the
// way "wget --mirror" writes them: <dir>/<host>/<path>, optionally with an
// ".html" suffix or as <path>/index.html.
type DirFetcher struct {
	Dir string
}

// Fetch reads the snapshot for pageURL.
func (f DirFetcher) Fetch(_ context.Context, pageURL string) ([]byte, error) {
	candidates, err := f.Candidates(pageURL)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !isDirError(candidate) {
			return nil, services.Wrap(services.ErrTransient, "catalog", "snapshot", "read "+candidate, err)
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "catalog", "snapshot", "no snapshot for "+pageURL, nil)
}

// Candidates lists the snapshot files tried for pageURL, in order.
func (f DirFetcher) Candidates(pageURL string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "snapshot", "invalid page url "+pageURL, err)
	}
	rel := strings.Trim(u.EscapedPath(), "/")
	if unescaped, err := url.PathUnescape(rel); err == nil {
		rel = unescaped
	}
	base := filepath.Join(f.Dir, u.Host, filepath.FromSlash(rel))
	return []string{
		base,
		base + ".html",
		filepath.Join(base, "index.html"),
	}, nil
}

func isDirError(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
