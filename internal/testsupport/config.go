package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bookscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithModel overrides the whisper model on the test config.
func WithModel(model string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Whisper.Model = model
	}
}

// WithWhisperOptions overrides the configured transcription options.
func WithWhisperOptions(wordTimestamps, highlightWords, fp16 bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Whisper.WordTimestamps = wordTimestamps
		b.cfg.Whisper.HighlightWords = highlightWords
		b.cfg.Whisper.FP16 = fp16
	}
}

// WithMaxWorkers overrides the batch worker bound on the test config.
func WithMaxWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.MaxWorkers = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed. The whisper stub writes a caption file into the directory
// passed via --output_dir so successful runs leave the expected artifact.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"whisper", "ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			script := "#!/bin/sh\nexit 0\n"
			switch name {
			case "whisper":
				script = whisperStubScript
			case "ffmpeg":
				script = ffmpegStubScript
			case "ffprobe":
				script = ffprobeStubScript
			}
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// whisperStubScript mimics the real CLI closely enough for orchestration
// tests: it advertises the optional flags under --help, emits progress lines,
// and drops a .vtt named after the source into --output_dir.
const whisperStubScript = `#!/bin/sh
if [ "$1" = "--help" ]; then
    echo "usage: whisper audio [--model MODEL] [--output_format FORMAT]"
    echo "  [--output_dir DIR] [--word_timestamps WORD_TIMESTAMPS]"
    echo "  [--highlight_words HIGHLIGHT_WORDS]"
    exit 0
fi
source="$1"
outdir="."
prev=""
for arg; do
    if [ "$prev" = "--output_dir" ]; then
        outdir="$arg"
    fi
    prev="$arg"
done
base=$(basename "$source")
stem="${base%.*}"
echo "Detecting language"
echo "args: $*"
echo "[00:00.000 --> 00:05.000] stub transcript"
printf 'WEBVTT\n\n00:00.000 --> 00:05.000\nstub transcript\n' > "$outdir/$stem.vtt"
exit 0
`

// ffmpegStubScript writes placeholder bytes into its final argument, the way
// a stream copy would produce a clip file. Missing inputs fail like the real
// tool does.
const ffmpegStubScript = `#!/bin/sh
prev=""
in=""
out=""
for arg; do
    if [ "$prev" = "-i" ]; then in="$arg"; fi
    prev="$arg"
    out="$arg"
done
if [ -n "$in" ] && [ ! -f "$in" ]; then
    echo "$in: No such file or directory" >&2
    exit 1
fi
printf 'stub-clip-bytes' > "$out"
exit 0
`

// ffprobeStubScript reports a fixed 15 second duration for any input.
const ffprobeStubScript = `#!/bin/sh
echo '{"streams":[{"index":0,"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"15.0","size":"262144","format_name":"mp3"}}'
exit 0
`

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
