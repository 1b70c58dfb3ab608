package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/alessio/shellescape"

	"coursepull/internal/logging"
	"coursepull/internal/services"
)

const (
	defaultResolution   = "1080"
	defaultCodec        = "hvc1"
	defaultSubtitleLang = "en"
)

// Request identifies one lesson download.
type Request struct {
	URL          string
	Dir          string
	Name         string
	EnglishAudio bool
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the logger that receives command lines and sampled progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "downloader")
	}
}

// WithStreamSelection overrides the video resolution and codec filters.
func WithStreamSelection(resolution, codec string) Option {
	return func(c *Client) {
		if resolution = strings.TrimSpace(resolution); resolution != "" {
			c.resolution = resolution
		}
		if codec = strings.TrimSpace(codec); codec != "" {
			c.codec = codec
		}
	}
}

// WithSubtitleLang sets the subtitle language filter.
func WithSubtitleLang(lang string) Option {
	return func(c *Client) {
		if lang = strings.TrimSpace(lang); lang != "" {
			c.subtitleLang = lang
		}
	}
}

// Client wraps N_m3u8DL-RE invocations.
type Client struct {
	binary       string
	resolution   string
	codec        string
	subtitleLang string
	exec         Executor
	logger       *slog.Logger
}

// New constructs a client for an already resolved downloader binary.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "downloader", "init", "downloader binary required", nil)
	}
	client := &Client{
		binary:       binary,
		resolution:   defaultResolution,
		codec:        defaultCodec,
		subtitleLang: defaultSubtitleLang,
		exec:         commandExecutor{},
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the executable the client invokes.
func (c *Client) Binary() string {
	return c.binary
}

// Download fetches the video (and optional English audio) for req, then its
// subtitles. A failed video run is returned; a failed subtitle run is only
// logged because lessons without captions are common.
func (c *Client) Download(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return services.Wrap(services.ErrValidation, "downloader", "download", "playback url required", nil)
	}
	if strings.TrimSpace(req.Dir) == "" || strings.TrimSpace(req.Name) == "" {
		return services.Wrap(services.ErrValidation, "downloader", "download", "save directory and name required", nil)
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "downloader", "prepare", "create save directory", err)
	}

	logger := c.logger.With(logging.String("save_name", req.Name))

	if err := c.run(ctx, logger, "video", c.VideoArgs(req)); err != nil {
		return services.Wrap(services.ErrExternalTool, "downloader", "video", "N_m3u8DL-RE failed", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.run(ctx, logger, "subtitles", c.SubtitleArgs(req)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.WarnWithContext(logger, "subtitle download failed", "subtitle_download_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "lesson saved without subtitles"),
			logging.String(logging.FieldErrorHint, "check whether the lesson offers captions in the requested language"),
		)
	}
	return nil
}

// VideoArgs returns the arguments for the video (and English audio) run.
func (c *Client) VideoArgs(req Request) []string {
	args := []string{
		"-sv", fmt.Sprintf("res=%s*:codec=%s:for=best", c.resolution, c.codec),
		req.URL,
		"--save-dir", req.Dir,
		"--tmp-dir", req.Dir,
		"--save-name", req.Name,
	}
	if req.EnglishAudio {
		args = append(args, "-sa", "lang=en:for=best")
	}
	return args
}

// SubtitleArgs returns the arguments for the subtitle run.
func (c *Client) SubtitleArgs(req Request) []string {
	return []string{
		"--auto-subtitle-fix",
		"--sub-format", "SRT",
		"--select-subtitle", fmt.Sprintf("lang=%s:for=all", c.subtitleLang),
		req.URL,
		"--save-dir", req.Dir,
		"--tmp-dir", req.Dir,
		"--save-name", req.Name,
	}
}

func (c *Client) run(ctx context.Context, logger *slog.Logger, pass string, args []string) error {
	logger = logger.With(logging.String("pass", pass))
	logger.Debug("running downloader", logging.String("command", shellescape.QuoteCommand(append([]string{c.binary}, args...))))

	sampler := logging.NewProgressSampler(25)
	var mu sync.Mutex
	return c.exec.Run(ctx, c.binary, args, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if update, ok := ParseProgress(line); ok {
			if sampler.ShouldLog(update.Track, update.Percent) {
				logger.Debug("download progress",
					logging.String("track", update.Track),
					logging.Any("percent", update.Percent),
				)
			}
			return
		}
		if line = strings.TrimSpace(line); line != "" {
			logger.Debug("downloader output", logging.String("line", line))
		}
	})
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanLinesOrCarriageReturns)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
			// Keep the pipe drained so the child never blocks on a full buffer.
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("downloader exited with status %d: %w", exitErr.ExitCode(), err)
		}
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

// scanLinesOrCarriageReturns splits on \n and on bare \r, since the
// downloader redraws its progress bars with carriage returns.
func scanLinesOrCarriageReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
