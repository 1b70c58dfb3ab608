package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"coursepull/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCourses(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadRoot) == "" {
		return errors.New("paths.download_root must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCourses() error {
	for _, raw := range c.Courses.URLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("courses.urls: %q is not an http(s) URL", raw)
		}
	}
	if c.Courses.RequestTimeout <= 0 {
		return errors.New("courses.request_timeout must be positive (seconds)")
	}
	if language.ToISO2(c.Courses.SubtitleLang) == "" {
		return fmt.Errorf("courses.subtitle_lang: unrecognized language %q", c.Courses.SubtitleLang)
	}
	if strings.ContainsAny(c.Courses.Cookie, "\r\n") {
		return errors.New("courses.cookie must be a single line")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if c.Downloader.MaxConcurrent < 0 {
		return errors.New("downloader.max_concurrent must be zero (unbounded) or positive")
	}
	if strings.ContainsAny(c.Downloader.Resolution, " :=") {
		return fmt.Errorf("downloader.resolution: unsupported value %q", c.Downloader.Resolution)
	}
	if strings.ContainsAny(c.Downloader.Codec, " :=") {
		return fmt.Errorf("downloader.codec: unsupported value %q", c.Downloader.Codec)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
