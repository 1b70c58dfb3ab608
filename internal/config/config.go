package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadRoot string `toml:"download_root"`
	LogDir       string `toml:"log_dir"`
	StateDir     string `toml:"state_dir"`
}

// Courses describes where course pages come from.
type Courses struct {
	URLs           []string `toml:"urls"`
	Manifest       string   `toml:"manifest"`
	SnapshotDir    string   `toml:"snapshot_dir"`
	SubtitleLang   string   `toml:"subtitle_lang"`
	Cookie         string   `toml:"cookie"`
	UserAgent      string   `toml:"user_agent"`
	RequestTimeout int      `toml:"request_timeout"`
}

// Downloader contains settings for the HLS/DASH downloader binary.
type Downloader struct {
	Binary        string `toml:"binary"`
	Resolution    string `toml:"resolution"`
	Codec         string `toml:"codec"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

// Muxer contains settings for the audio merge step.
type Muxer struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	AudioCodec   string `toml:"audio_codec"`
}

// Audio controls the optional English audio track.
type Audio struct {
	English bool `toml:"english"`
}

// Cleanup controls relocation of merged originals.
type Cleanup struct {
	Enabled     bool `toml:"enabled"`
	Consolidate bool `toml:"consolidate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for coursepull.
//
// Configuration sections by subsystem:
//   - Paths: download root, logs, and history state
//   - Courses: course URLs, manifests, snapshots, and HTTP settings
//   - Downloader: N_m3u8DL-RE binary and stream selection
//   - Muxer: ffmpeg binary and audio codec
//   - Audio: English audio download and merge
//   - Cleanup: relocation and consolidation of merged originals
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Courses    Courses    `toml:"courses"`
	Downloader Downloader `toml:"downloader"`
	Muxer      Muxer      `toml:"muxer"`
	Audio      Audio      `toml:"audio"`
	Cleanup    Cleanup    `toml:"cleanup"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadRoot, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the SQLite run ledger.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, historyFileName)
}

// FFmpegBinary returns the ffmpeg executable used for audio merges.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Muxer.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// DownloaderBinary returns the configured downloader, or its default name when
// unset. Callers resolve the name against the working directory and PATH.
func (c *Config) DownloaderBinary() string {
	if bin := strings.TrimSpace(c.Downloader.Binary); bin != "" {
		return bin
	}
	return defaultDownloaderBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
