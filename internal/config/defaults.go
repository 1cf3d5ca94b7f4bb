package config

const (
	defaultLibraryDir          = "~/books"
	defaultStateDir            = "~/.local/share/bookscribe"
	defaultLogDir              = "~/.local/share/bookscribe/logs"
	defaultAPIBind             = "127.0.0.1:8372"
	defaultWhisperModel        = "medium"
	defaultMaxWorkers          = 2
	defaultClipSeconds         = 15
	defaultClipTimeoutSeconds  = 30
	defaultProbeTimeoutSeconds = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Whisper: Whisper{
			Model:          defaultWhisperModel,
			WordTimestamps: true,
			HighlightWords: true,
			FP16:           false,
		},
		Transcription: Transcription{
			MaxWorkers:          defaultMaxWorkers,
			ClipSeconds:         defaultClipSeconds,
			ClipTimeoutSeconds:  defaultClipTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
