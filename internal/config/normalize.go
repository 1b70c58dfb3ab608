package config

import (
	"fmt"
	"os"
	"strings"

	"coursepull/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCourses(); err != nil {
		return err
	}
	c.normalizeDownloader()
	c.normalizeMuxer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadRoot) == "" {
		c.Paths.DownloadRoot = defaultDownloadRoot
	}
	if c.Paths.DownloadRoot, err = expandPath(c.Paths.DownloadRoot); err != nil {
		return fmt.Errorf("paths.download_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCourses() error {
	urls := make([]string, 0, len(c.Courses.URLs))
	seen := make(map[string]struct{}, len(c.Courses.URLs))
	for _, raw := range c.Courses.URLs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		urls = append(urls, trimmed)
	}
	c.Courses.URLs = urls

	var err error
	if c.Courses.Manifest, err = expandPath(strings.TrimSpace(c.Courses.Manifest)); err != nil {
		return fmt.Errorf("courses.manifest: %w", err)
	}
	if c.Courses.SnapshotDir, err = expandPath(strings.TrimSpace(c.Courses.SnapshotDir)); err != nil {
		return fmt.Errorf("courses.snapshot_dir: %w", err)
	}

	lang := strings.TrimSpace(c.Courses.SubtitleLang)
	if lang == "" {
		lang = defaultSubtitleLang
	}
	if code := language.ToISO2(lang); code != "" {
		lang = code
	}
	c.Courses.SubtitleLang = lang
	c.Courses.Cookie = strings.TrimSpace(c.Courses.Cookie)
	if value, ok := os.LookupEnv(cookieEnvVar); ok && strings.TrimSpace(value) != "" {
		c.Courses.Cookie = strings.TrimSpace(value)
	}
	c.Courses.UserAgent = strings.TrimSpace(c.Courses.UserAgent)
	if c.Courses.UserAgent == "" {
		c.Courses.UserAgent = defaultUserAgent
	}
	if c.Courses.RequestTimeout == 0 {
		c.Courses.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizeDownloader() {
	c.Downloader.Binary = strings.TrimSpace(c.Downloader.Binary)
	c.Downloader.Resolution = strings.TrimSpace(c.Downloader.Resolution)
	if c.Downloader.Resolution == "" {
		c.Downloader.Resolution = defaultResolution
	}
	c.Downloader.Codec = strings.ToLower(strings.TrimSpace(c.Downloader.Codec))
	if c.Downloader.Codec == "" {
		c.Downloader.Codec = defaultCodec
	}
}

func (c *Config) normalizeMuxer() {
	c.Muxer.FFmpegBinary = strings.TrimSpace(c.Muxer.FFmpegBinary)
	if c.Muxer.FFmpegBinary == "" {
		c.Muxer.FFmpegBinary = defaultFFmpegBinary
	}
	c.Muxer.AudioCodec = strings.ToLower(strings.TrimSpace(c.Muxer.AudioCodec))
	if c.Muxer.AudioCodec == "" {
		c.Muxer.AudioCodec = defaultAudioCodec
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
