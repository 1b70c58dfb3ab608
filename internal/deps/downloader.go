package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DownloaderReleases is where users can fetch the downloader binary.
const DownloaderReleases = "https://github.com/nilaoda/N_m3u8DL-RE/releases"

// ResolveDownloader reports the N_m3u8DL-RE executable a run will use.
//
// An explicit path is used as-is. A bare name is looked up in the working
// directory first, where the release archive is usually unpacked, and then
// on PATH. The ".exe" suffix is added on Windows.
func ResolveDownloader(configured string) Status {
	result := Status{
		Name:        "N_m3u8DL-RE",
		Description: "Downloads lesson video, audio, and subtitle streams",
	}

	name := executableName(strings.TrimSpace(configured))
	if name == "" {
		name = executableName("N_m3u8DL-RE")
	}
	result.Command = name

	if strings.ContainsAny(name, `/\`) {
		if info, err := os.Stat(name); err == nil && isExecutable(info) {
			result.Command = absPath(name)
			result.Available = true
			return result
		}
		result.Detail = fmt.Sprintf("binary %q not found; download it from %s", name, DownloaderReleases)
		return result
	}

	if info, err := os.Stat(name); err == nil && isExecutable(info) {
		result.Command = absPath(name)
		result.Available = true
		return result
	}

	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	result.Detail = fmt.Sprintf("binary %q not found in working directory or PATH; download it from %s", name, DownloaderReleases)
	return result
}

func executableName(name string) string {
	if name == "" || runtime.GOOS != "windows" {
		return name
	}
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name
	}
	return name + ".exe"
}

func absPath(name string) string {
	if abs, err := filepath.Abs(name); err == nil {
		return abs
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
