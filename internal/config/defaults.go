package config

const (
	defaultConfigPath       = "~/.config/coursepull/config.toml"
	projectConfigName       = "coursepull.toml"
	historyFileName         = "history.db"
	defaultDownloadRoot     = "domestika_courses"
	defaultLogDir           = "~/.local/share/coursepull/logs"
	defaultStateDir         = "~/.local/share/coursepull"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultSubtitleLang     = "en"
	defaultUserAgent        = "coursepull/dev"
	defaultRequestTimeout   = 30
	defaultDownloaderBinary = "N_m3u8DL-RE"
	defaultResolution       = "1080"
	defaultCodec            = "hvc1"
	defaultFFmpegBinary     = "ffmpeg"
	defaultAudioCodec       = "aac"
	cookieEnvVar            = "COURSEPULL_COOKIE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadRoot: defaultDownloadRoot,
			LogDir:       defaultLogDir,
			StateDir:     defaultStateDir,
		},
		Courses: Courses{
			SubtitleLang:   defaultSubtitleLang,
			UserAgent:      defaultUserAgent,
			RequestTimeout: defaultRequestTimeout,
		},
		Downloader: Downloader{
			Resolution: defaultResolution,
			Codec:      defaultCodec,
		},
		Muxer: Muxer{
			FFmpegBinary: defaultFFmpegBinary,
			AudioCodec:   defaultAudioCodec,
		},
		Cleanup: Cleanup{
			Enabled:     true,
			Consolidate: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
