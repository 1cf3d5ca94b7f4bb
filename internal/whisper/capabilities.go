package whisper

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"bookscribe/internal/logging"
)

// Capabilities reports which optional whisper flags the installed CLI accepts.
type Capabilities struct {
	Installed      bool `json:"installed"`
	WordTimestamps bool `json:"word_timestamps"`
	HighlightWords bool `json:"highlight_words"`
}

// Prober discovers CLI capabilities at most once per process. Concurrent
// callers share the single probe result.
type Prober struct {
	binary string
	logger *slog.Logger

	once sync.Once
	caps Capabilities
}

// NewProber returns a prober for the given whisper binary.
func NewProber(binary string, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Prober{binary: binary, logger: logger}
}

// Probe runs `whisper --help` on the first call and scans the usage text for
// the optional flags. Any failure yields all-false capabilities and a warning
// rather than an error; transcription proceeds with base options.
func (p *Prober) Probe(ctx context.Context) Capabilities {
	p.once.Do(func() {
		cmd := exec.CommandContext(ctx, p.binary, "--help")
		output, err := cmd.CombinedOutput()
		if err != nil {
			p.logger.Warn("whisper capability probe failed, assuming base options only",
				logging.String("binary", p.binary),
				logging.Error(err))
			return
		}
		help := string(output)
		p.caps = Capabilities{
			Installed:      true,
			WordTimestamps: strings.Contains(help, "--word_timestamps"),
			HighlightWords: strings.Contains(help, "--highlight_words"),
		}
		p.logger.Info("whisper capabilities detected",
			logging.Bool("word_timestamps", p.caps.WordTimestamps),
			logging.Bool("highlight_words", p.caps.HighlightWords))
	})
	return p.caps
}
