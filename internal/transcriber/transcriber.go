package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookscribe/internal/config"
	"bookscribe/internal/jobs"
	"bookscribe/internal/library"
	"bookscribe/internal/logging"
	"bookscribe/internal/media/ffprobe"
	"bookscribe/internal/services"
	"bookscribe/internal/speed"
	"bookscribe/internal/whisper"
)

// ErrCaptionExists rejects a single-file transcription whose caption artifact
// is already present. Callers surface it as "exists", not as a failure.
var ErrCaptionExists = errors.New("caption already exists for this file")

// Transcriber is the facade the HTTP and CLI layers consume. It owns the job
// registry, the capability prober, and the speed model, and resolves files
// through the library.
type Transcriber struct {
	cfg      *config.Config
	lib      *library.Library
	registry *jobs.Registry
	prober   *whisper.Prober
	model    *speed.Model
	tester   *speed.Tester
	logger   *slog.Logger
}

// New wires a transcriber from its collaborators.
func New(cfg *config.Config, lib *library.Library, store *speed.Store, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	registry := jobs.NewRegistry(logging.NewComponentLogger(logger, "jobs"))
	prober := whisper.NewProber(cfg.WhisperBinary(), logging.NewComponentLogger(logger, "whisper"))
	model := speed.NewModel(store)
	tester := speed.NewTester(cfg, model, registry, prober, logging.NewComponentLogger(logger, "speed"))
	return &Transcriber{
		cfg:      cfg,
		lib:      lib,
		registry: registry,
		prober:   prober,
		model:    model,
		tester:   tester,
		logger:   logger,
	}
}

// Library exposes the filesystem view backing this transcriber.
func (t *Transcriber) Library() *library.Library {
	return t.lib
}

// Jobs exposes the registry for status listings.
func (t *Transcriber) Jobs() *jobs.Registry {
	return t.registry
}

// ProbeCapabilities reports which optional whisper flags are available.
func (t *Transcriber) ProbeCapabilities(ctx context.Context) whisper.Capabilities {
	return t.prober.Probe(ctx)
}

// FileStatus describes one audio file's caption and job state.
type FileStatus struct {
	Book              string     `json:"book"`
	File              string     `json:"file"`
	HasCaption        bool       `json:"has_caption"`
	HasWordTimestamps bool       `json:"has_word_timestamps"`
	JobState          jobs.State `json:"job_state,omitempty"`
}

// FileStatus reports caption presence, caption granularity, and any tracked
// job for the file.
func (t *Transcriber) FileStatus(ctx context.Context, book, file string) (FileStatus, error) {
	if _, err := t.lib.ResolvePath(book, file); err != nil {
		return FileStatus{}, err
	}
	status := FileStatus{Book: book, File: file}
	status.HasCaption = t.lib.CaptionExists(book, file)
	if status.HasCaption {
		captionPath, err := t.lib.CaptionPath(book, file)
		if err == nil {
			status.HasWordTimestamps = library.HasWordTimestamps(captionPath)
		}
	}
	if view, ok := t.registry.Status(jobs.Key{Book: book, File: file}); ok {
		status.JobState = view.State
	}
	return status, nil
}

// Defaults returns the configured whisper options. Callers that let the user
// override options selectively start from these and apply what was given.
func (t *Transcriber) Defaults() whisper.Options {
	return whisper.Options{
		Model:          t.cfg.Whisper.Model,
		WordTimestamps: t.cfg.Whisper.WordTimestamps,
		HighlightWords: t.cfg.Whisper.HighlightWords,
		FP16:           t.cfg.Whisper.FP16,
	}
}

// defaultedOptions fills the model from config when the caller left it empty.
// FP16 is not a per-request knob, so the configured value always wins.
func (t *Transcriber) defaultedOptions(opts whisper.Options) whisper.Options {
	if opts.Model == "" {
		opts.Model = t.cfg.Whisper.Model
	}
	opts.FP16 = t.cfg.Whisper.FP16
	return opts
}

// StartTranscription admits a job for one file. A present caption rejects
// with ErrCaptionExists; a running job rejects with jobs.ErrAlreadyRunning.
func (t *Transcriber) StartTranscription(ctx context.Context, book, file string, opts whisper.Options) (string, error) {
	sourcePath, err := t.lib.ResolvePath(book, file)
	if err != nil {
		return "", err
	}
	if !t.lib.AudioExists(book, file) {
		return "", services.Wrap(services.ErrNotFound, "transcriber", "start", fmt.Sprintf("audio file %s/%s not found", book, file), nil)
	}
	if t.lib.CaptionExists(book, file) {
		return "", ErrCaptionExists
	}

	opts = t.defaultedOptions(opts)
	caps := t.prober.Probe(ctx)
	effective := opts.Effective(caps, t.logger)
	outputDir, err := t.lib.BookDir(book)
	if err != nil {
		return "", err
	}

	return t.registry.Submit(jobs.Key{Book: book, File: file}, jobs.Spec{
		Binary:           t.cfg.WhisperBinary(),
		Args:             whisper.Command(sourcePath, outputDir, effective),
		Options:          opts,
		EffectiveOptions: effective,
	})
}

// StartBatch admits every uncaptioned file of book with bounded concurrency.
// parallel=false forces a worker bound of one; maxWorkers <= 0 falls back to
// the configured bound. Files already captioned or already running are
// skipped. The call returns after dispatch begins; progress is observable per
// file through the registry.
func (t *Transcriber) StartBatch(ctx context.Context, book string, opts whisper.Options, parallel bool, maxWorkers int) (*jobs.Batch, error) {
	files, err := t.lib.ListAudioFiles(book)
	if err != nil {
		return nil, err
	}

	opts = t.defaultedOptions(opts)
	caps := t.prober.Probe(ctx)
	effective := opts.Effective(caps, t.logger)
	outputDir, err := t.lib.BookDir(book)
	if err != nil {
		return nil, err
	}

	workers := maxWorkers
	if workers <= 0 {
		workers = t.cfg.Transcription.MaxWorkers
	}
	if !parallel {
		workers = 1
	}

	batch := jobs.Dispatch(t.registry, t.logger, book, files, workers, func(file string) (jobs.Spec, bool) {
		if t.lib.CaptionExists(book, file) {
			return jobs.Spec{}, false
		}
		sourcePath, err := t.lib.ResolvePath(book, file)
		if err != nil {
			return jobs.Spec{}, false
		}
		return jobs.Spec{
			Binary:           t.cfg.WhisperBinary(),
			Args:             whisper.Command(sourcePath, outputDir, effective),
			Options:          opts,
			EffectiveOptions: effective,
		}, true
	})
	return batch, nil
}

// PollLog returns log lines for the file's job at or after cursor, the next
// cursor, and the job state observed after the read.
func (t *Transcriber) PollLog(book, file string, cursor int) (lines []string, next int, state jobs.State, ok bool) {
	return t.registry.LogSince(jobs.Key{Book: book, File: file}, cursor)
}

// JobStatus returns a snapshot of the file's tracked job.
func (t *Transcriber) JobStatus(book, file string) (jobs.View, bool) {
	return t.registry.Status(jobs.Key{Book: book, File: file})
}

// CancelJob kills the running job for the file, best effort.
func (t *Transcriber) CancelJob(book, file string) error {
	return t.registry.Cancel(jobs.Key{Book: book, File: file})
}

// RunSpeedTest times a short transcription of sampleFile and persists the
// measured ratio. An empty sampleFile picks the book's first audio file.
func (t *Transcriber) RunSpeedTest(ctx context.Context, book, sampleFile string, opts whisper.Options) (speed.Result, error) {
	if sampleFile == "" {
		files, err := t.lib.ListAudioFiles(book)
		if err != nil {
			return speed.Result{}, err
		}
		if len(files) == 0 {
			return speed.Result{}, services.Wrap(services.ErrNotFound, "transcriber", "speed test", fmt.Sprintf("book %q has no audio files", book), nil)
		}
		sampleFile = files[0]
	}
	sourcePath, err := t.lib.ResolvePath(book, sampleFile)
	if err != nil {
		return speed.Result{}, err
	}
	return t.tester.Run(ctx, book, sourcePath, t.defaultedOptions(opts))
}

// Estimate predicts the wall-clock seconds to transcribe the file under the
// given options. The prediction uses the effective option set so it matches
// what a real run would do. A never-measured key returns speed.ErrNoEstimate.
func (t *Transcriber) Estimate(ctx context.Context, book, file string, opts whisper.Options) (float64, error) {
	sourcePath, err := t.lib.ResolvePath(book, file)
	if err != nil {
		return 0, err
	}

	opts = t.defaultedOptions(opts)
	caps := t.prober.Probe(ctx)
	effective := opts.Effective(caps, t.logger)

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Transcription.ProbeTimeoutSeconds)*time.Second)
	defer cancel()
	audioSeconds, estimated, err := ffprobe.Duration(probeCtx, t.cfg.FFprobeBinary(), sourcePath)
	if err != nil {
		return 0, err
	}
	if estimated {
		t.logger.Debug("audio duration estimated from file size",
			logging.String("book", book),
			logging.String("file", file))
	}

	key := speed.RatioKey{
		Model:          effective.Model,
		WordTimestamps: effective.WordTimestamps,
		HighlightWords: effective.HighlightWords,
	}
	return t.model.Estimate(ctx, key, audioSeconds)
}

// SpeedRatios lists every persisted speed measurement.
func (t *Transcriber) SpeedRatios(ctx context.Context) ([]speed.Entry, error) {
	return t.model.Ratios(ctx)
}
