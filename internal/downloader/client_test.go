package downloader_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"coursepull/internal/downloader"
	"coursepull/internal/logging"
	"coursepull/internal/services"
)

type stubExecutor struct {
	lines  []string
	errs   []error
	calls  int
	binary []string
	args   [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	s.calls++
	s.binary = append(s.binary, binary)
	s.args = append(s.args, append([]string(nil), args...))
	for _, line := range s.lines {
		onOutput(line)
	}
	if len(s.errs) >= s.calls {
		return s.errs[s.calls-1]
	}
	return nil
}

func newRequest(t *testing.T, english bool) downloader.Request {
	t.Helper()
	return downloader.Request{
		URL:          "https://cdn.example/lesson/master.m3u8",
		Dir:          filepath.Join(t.TempDir(), "Course", "Section", "Unit"),
		Name:         "0_Welcome",
		EnglishAudio: english,
	}
}

func TestDownloadRunsVideoThenSubtitles(t *testing.T) {
	exec := &stubExecutor{}
	client, err := downloader.New("/opt/N_m3u8DL-RE", downloader.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	req := newRequest(t, false)
	if err := client.Download(context.Background(), req); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if exec.calls != 2 {
		t.Fatalf("expected two invocations, got %d", exec.calls)
	}
	if exec.binary[0] != "/opt/N_m3u8DL-RE" {
		t.Fatalf("unexpected binary %q", exec.binary[0])
	}

	video := exec.args[0]
	wantVideo := []string{
		"-sv", "res=1080*:codec=hvc1:for=best",
		req.URL,
		"--save-dir", req.Dir,
		"--tmp-dir", req.Dir,
		"--save-name", "0_Welcome",
	}
	if !slices.Equal(video, wantVideo) {
		t.Fatalf("video args = %q, want %q", video, wantVideo)
	}

	subs := strings.Join(exec.args[1], " ")
	for _, want := range []string{"--auto-subtitle-fix", "--sub-format SRT", "--select-subtitle lang=en:for=all", "--save-name 0_Welcome"} {
		if !strings.Contains(subs, want) {
			t.Fatalf("subtitle args %q missing %q", subs, want)
		}
	}
}

func TestDownloadRequestsEnglishAudio(t *testing.T) {
	exec := &stubExecutor{}
	client, err := downloader.New("N_m3u8DL-RE", downloader.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := client.Download(context.Background(), newRequest(t, true)); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	video := strings.Join(exec.args[0], " ")
	if !strings.HasSuffix(video, "-sa lang=en:for=best") {
		t.Fatalf("expected english audio selection, got %q", video)
	}
	if strings.Contains(strings.Join(exec.args[1], " "), "-sa") {
		t.Fatal("subtitle pass must not select audio")
	}
}

func TestDownloadVideoFailureIsReturned(t *testing.T) {
	exec := &stubExecutor{errs: []error{errors.New("exit status 1")}}
	client, err := downloader.New("N_m3u8DL-RE", downloader.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = client.Download(context.Background(), newRequest(t, false))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("subtitle pass should not run after video failure, got %d calls", exec.calls)
	}
}

func TestDownloadSubtitleFailureIsTolerated(t *testing.T) {
	exec := &stubExecutor{errs: []error{nil, errors.New("no subtitles")}}
	client, err := downloader.New("N_m3u8DL-RE", downloader.WithExecutor(exec), downloader.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := client.Download(context.Background(), newRequest(t, false)); err != nil {
		t.Fatalf("subtitle failure should not fail the lesson: %v", err)
	}
}

func TestDownloadValidatesRequest(t *testing.T) {
	client, err := downloader.New("N_m3u8DL-RE", downloader.WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	req := newRequest(t, false)
	req.URL = ""
	if err := client.Download(context.Background(), req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := downloader.New("  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStreamSelectionOptions(t *testing.T) {
	client, err := downloader.New("N_m3u8DL-RE",
		downloader.WithStreamSelection("720", "avc1"),
		downloader.WithSubtitleLang("es"),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	req := downloader.Request{URL: "u", Dir: "d", Name: "n"}
	if got := client.VideoArgs(req)[1]; got != "res=720*:codec=avc1:for=best" {
		t.Fatalf("unexpected stream filter %q", got)
	}
	if got := client.SubtitleArgs(req)[4]; got != "lang=es:for=all" {
		t.Fatalf("unexpected subtitle filter %q", got)
	}
}

func TestDownloadForwardsProgressLines(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"Vid 1920x1080 | 4012 Kbps | 25.00fps ━━━━━━━ 10/100 10.00% 3.00MB/30.00MB 1.00MBps 00:00:27",
		"Aud en | 128 Kbps ━━━━━━━━━━━ 100/100 100.00% 1.00MB/1.00MB 0.50MBps 00:00:00",
		"some other output",
	}}
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New returned error: %v", err)
	}
	client, err := downloader.New("N_m3u8DL-RE", downloader.WithExecutor(exec), downloader.WithLogger(logger))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := client.Download(context.Background(), newRequest(t, true)); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"track":"Vid 1920x1080"`, `"track":"Aud en"`, `"line":"some other output"`, `"component":"downloader"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output:\n%s", want, out)
		}
	}
}
