package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"coursepull/internal/catalog"
	"coursepull/internal/config"
	"coursepull/internal/downloader"
	"coursepull/internal/muxer"
	"coursepull/internal/pipeline"
	"coursepull/internal/reconcile"
)

var errNoCourses = errors.New("no courses to process; pass course URLs or set courses.urls or courses.manifest")

// sourceFlags are the per-invocation overrides shared by run and plan.
type sourceFlags struct {
	manifest  string
	snapshots string
	english   bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.english, "eng", false, "Download English audio and merge it into each lesson")
	flags.StringVar(&f.manifest, "manifest", "", "TOML manifest listing courses, units, and playback URLs")
	flags.StringVar(&f.snapshots, "snapshots", "", "Read course pages from a saved site mirror instead of the network")
}

// apply folds positional arguments and flags into cfg. A positional "eng"
// enables English audio like --eng; every other argument is a course URL.
func (f *sourceFlags) apply(cfg *config.Config, args []string) error {
	var urls []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		switch {
		case arg == "":
		case strings.EqualFold(arg, "eng"):
			f.english = true
		default:
			urls = append(urls, arg)
		}
	}
	if len(urls) > 0 {
		cfg.Courses.URLs = urls
	}
	if f.english {
		cfg.Audio.English = true
	}
	if f.manifest != "" {
		path, err := config.ExpandPath(f.manifest)
		if err != nil {
			return fmt.Errorf("resolve manifest path: %w", err)
		}
		cfg.Courses.Manifest = path
	}
	if f.snapshots != "" {
		path, err := config.ExpandPath(f.snapshots)
		if err != nil {
			return fmt.Errorf("resolve snapshot directory: %w", err)
		}
		cfg.Courses.SnapshotDir = path
	}
	return nil
}

// buildSources returns manifest courses first, then scraped course URLs.
func buildSources(cfg *config.Config, logger *slog.Logger) ([]catalog.Source, error) {
	var sources []catalog.Source
	if path := strings.TrimSpace(cfg.Courses.Manifest); path != "" {
		manifest, err := catalog.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, manifest.Sources()...)
	}
	if len(cfg.Courses.URLs) > 0 {
		var fetcher catalog.Fetcher = catalog.NewHTTPFetcher(cfg.Courses)
		if dir := strings.TrimSpace(cfg.Courses.SnapshotDir); dir != "" {
			fetcher = catalog.DirFetcher{Dir: dir}
		}
		sources = append(sources, catalog.NewScraper(fetcher, logger).Sources(cfg.Courses.URLs)...)
	}
	if len(sources) == 0 {
		return nil, errNoCourses
	}
	return sources, nil
}

func newReconcileEngine(cfg *config.Config, logger *slog.Logger) *reconcile.Engine {
	merger := muxer.New(cfg.FFmpegBinary(), logger, muxer.WithAudioCodec(cfg.Muxer.AudioCodec))
	return reconcile.New(merger, reconcile.Options{Cleanup: cfg.Cleanup.Enabled}, logger)
}

func newDownloadClient(binary string, cfg *config.Config, logger *slog.Logger) (*downloader.Client, error) {
	return downloader.New(binary,
		downloader.WithLogger(logger),
		downloader.WithStreamSelection(cfg.Downloader.Resolution, cfg.Downloader.Codec),
		downloader.WithSubtitleLang(cfg.Courses.SubtitleLang),
	)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Root:          cfg.Paths.DownloadRoot,
		EnglishAudio:  cfg.Audio.English,
		Cleanup:       cfg.Cleanup.Enabled,
		Consolidate:   cfg.Cleanup.Consolidate,
		MaxConcurrent: cfg.Downloader.MaxConcurrent,
	}
}
