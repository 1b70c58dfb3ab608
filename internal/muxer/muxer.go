// Package muxer merges a separately downloaded audio track into a video file
// with ffmpeg.
//
// Output is written to a hidden temporary file next to the target and renamed
// into place only after ffmpeg succeeds, so a failed or interrupted merge never
// leaves a partial "<stem>.en.mp4" behind.
package muxer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"

	"coursepull/internal/artifact"
	"coursepull/internal/logging"
	"coursepull/internal/services"
)

const defaultAudioCodec = "aac"

// CommandRunner executes an external command and returns its error.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// MergeRequest describes the inputs for one merge.
type MergeRequest struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
}

// Muxer replaces the audio of a video file using ffmpeg.
type Muxer struct {
	binary     string
	audioCodec string
	logger     *slog.Logger
	run        CommandRunner
}

// Option configures a Muxer.
type Option func(*Muxer)

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r CommandRunner) Option {
	return func(m *Muxer) {
		if r != nil {
			m.run = r
		}
	}
}

// WithAudioCodec overrides the audio codec passed to -c:a.
func WithAudioCodec(codec string) Option {
	return func(m *Muxer) {
		if codec = strings.TrimSpace(codec); codec != "" {
			m.audioCodec = codec
		}
	}
}

// New constructs a muxer that invokes binary (normally "ffmpeg").
func New(binary string, logger *slog.Logger, opts ...Option) *Muxer {
	m := &Muxer{
		binary:     strings.TrimSpace(binary),
		audioCodec: defaultAudioCodec,
		logger:     logging.NewComponentLogger(logger, "muxer"),
		run:        defaultCommandRunner,
	}
	if m.binary == "" {
		m.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TempPath returns the temporary file a merge into output writes first.
func TempPath(output string) string {
	return filepath.Join(filepath.Dir(output), artifact.TempPrefix+filepath.Base(output)+".tmp")
}

// Merge copies the video stream of req.VideoPath, re-encodes the first audio
// stream of req.AudioPath, and writes the result to req.OutputPath.
// On failure the output path is left untouched and the temporary file removed.
func (m *Muxer) Merge(ctx context.Context, req MergeRequest) error {
	if m == nil {
		return errors.New("muxer not initialized")
	}
	if strings.TrimSpace(req.VideoPath) == "" || strings.TrimSpace(req.AudioPath) == "" || strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "muxer", "merge", "video, audio, and output paths are required", nil)
	}
	for _, input := range []string{req.VideoPath, req.AudioPath} {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrNotFound, "muxer", "merge", fmt.Sprintf("input %q", input), err)
		}
	}

	tmpPath := TempPath(req.OutputPath)
	args := m.buildArgs(req, tmpPath)

	m.logger.Debug("executing ffmpeg",
		logging.String("command", shellescape.QuoteCommand(append([]string{m.binary}, args...))),
	)

	if err := m.run(ctx, m.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrExternalTool, "muxer", "ffmpeg", "merge failed", err)
	}

	if _, err := os.Stat(tmpPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "muxer", "ffmpeg", "no output file produced", err)
	}

	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move merged output into place: %w", err)
	}
	return nil
}

func (m *Muxer) buildArgs(req MergeRequest, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-c:v", "copy",
		"-c:a", m.audioCodec,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-f", "mp4",
		outputPath,
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
