package whisper

import (
	"log/slog"

	"bookscribe/internal/logging"
)

// Options describe a requested transcription run.
type Options struct {
	Model          string `json:"model"`
	WordTimestamps bool   `json:"word_timestamps"`
	HighlightWords bool   `json:"highlight_words"`
	FP16           bool   `json:"fp16"`
}

// Effective filters the requested options against probed capabilities.
// Unsupported flags are dropped with a warning. Highlighted words require
// word-level timestamps, so highlighting is dropped whenever word timestamps
// end up disabled.
func (o Options) Effective(caps Capabilities, logger *slog.Logger) Options {
	if logger == nil {
		logger = logging.NewNop()
	}
	out := o
	if out.WordTimestamps && !caps.WordTimestamps {
		logger.Warn("installed whisper does not support --word_timestamps, dropping")
		out.WordTimestamps = false
	}
	if out.HighlightWords && !caps.HighlightWords {
		logger.Warn("installed whisper does not support --highlight_words, dropping")
		out.HighlightWords = false
	}
	if out.HighlightWords && !out.WordTimestamps {
		out.HighlightWords = false
	}
	return out
}

// Command builds the whisper argv for transcribing source into outputDir.
// Options must already be filtered through Effective.
func Command(source, outputDir string, opts Options) []string {
	args := []string{
		source,
		"--model", opts.Model,
		"--output_format", "vtt",
		"--output_dir", outputDir,
		"--fp16", pythonBool(opts.FP16),
	}
	if opts.WordTimestamps {
		args = append(args, "--word_timestamps", "True")
		if opts.HighlightWords {
			args = append(args, "--highlight_words", "True")
		}
	}
	return args
}

// pythonBool renders a flag value the way the CLI's argparse expects it.
func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
