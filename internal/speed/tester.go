package speed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"bookscribe/internal/config"
	"bookscribe/internal/jobs"
	"bookscribe/internal/logging"
	"bookscribe/internal/media/clip"
	"bookscribe/internal/media/ffprobe"
	"bookscribe/internal/services"
	"bookscribe/internal/whisper"
)

// SpeedTestFile is the synthetic file identity a speed test occupies in the
// job registry. One speed test per book at a time; a second request observes
// the usual already-running rejection.
const SpeedTestFile = ".speed-test"

// Result reports one completed speed test.
type Result struct {
	Key              RatioKey        `json:"key"`
	Ratio            float64         `json:"ratio"`
	ClipAudioSeconds float64         `json:"clip_audio_seconds"`
	MeasuredSeconds  float64         `json:"measured_seconds"`
	EffectiveOptions whisper.Options `json:"effective_options"`
}

// Tester measures transcription throughput by timing a whisper run over a
// short clip and recording the resulting ratio.
type Tester struct {
	cfg      *config.Config
	model    *Model
	registry *jobs.Registry
	prober   *whisper.Prober
	logger   *slog.Logger
}

// NewTester wires a tester from its collaborators.
func NewTester(cfg *config.Config, model *Model, registry *jobs.Registry, prober *whisper.Prober, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tester{cfg: cfg, model: model, registry: registry, prober: prober, logger: logger}
}

// Run extracts a short clip from sourcePath, transcribes it under the given
// options, and persists the measured ratio. The clip and the transcription
// output are temporary artifacts removed on every exit path.
func (t *Tester) Run(ctx context.Context, book, sourcePath string, opts whisper.Options) (Result, error) {
	caps := t.prober.Probe(ctx)
	if !caps.Installed {
		return Result{}, services.Wrap(services.ErrExternalTool, "speed", "run", "whisper is not installed", nil)
	}
	effective := opts.Effective(caps, t.logger)
	key := RatioKey{
		Model:          effective.Model,
		WordTimestamps: effective.WordTimestamps,
		HighlightWords: effective.HighlightWords,
	}

	clipCtx, cancelClip := context.WithTimeout(ctx, time.Duration(t.cfg.Transcription.ClipTimeoutSeconds)*time.Second)
	defer cancelClip()
	clipPath, cleanup, err := clip.Extract(clipCtx, t.cfg.FFmpegBinary(), sourcePath, t.cfg.Transcription.ClipSeconds)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	probeCtx, cancelProbe := context.WithTimeout(ctx, time.Duration(t.cfg.Transcription.ProbeTimeoutSeconds)*time.Second)
	defer cancelProbe()
	audioSeconds, estimated, err := ffprobe.Duration(probeCtx, t.cfg.FFprobeBinary(), clipPath)
	if err != nil {
		return Result{}, err
	}
	if estimated {
		t.logger.Warn("clip duration estimated from file size",
			logging.String("clip", clipPath))
	}

	outputDir, err := os.MkdirTemp("", "bookscribe-speedtest-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(outputDir)

	jobKey := jobs.Key{Book: book, File: SpeedTestFile}
	done := make(chan *jobs.Job, 1)
	spec := jobs.Spec{
		Binary:           t.cfg.WhisperBinary(),
		Args:             whisper.Command(clipPath, outputDir, effective),
		Options:          opts,
		EffectiveOptions: effective,
		OnDone:           func(job *jobs.Job) { done <- job },
	}

	started := time.Now()
	if _, err := t.registry.Submit(jobKey, spec); err != nil {
		return Result{}, err
	}

	var job *jobs.Job
	select {
	case job = <-done:
	case <-ctx.Done():
		_ = t.registry.Cancel(jobKey)
		job = <-done
		return Result{}, ctx.Err()
	}
	elapsed := time.Since(started).Seconds()

	if job.State != jobs.StateSucceeded {
		tail := strings.Join(job.Log.Tail(5), "; ")
		return Result{}, services.Wrap(services.ErrExternalTool, "speed", "run", "speed test transcription failed: "+tail, nil)
	}

	ratio, err := t.model.Record(ctx, key, audioSeconds, elapsed)
	if err != nil {
		if errors.Is(err, ErrUnmeasurable) {
			t.logger.Warn("speed test produced unmeasurable timing",
				logging.Float64("audio_seconds", audioSeconds),
				logging.Float64("wall_seconds", elapsed))
		}
		return Result{}, err
	}

	t.logger.Info("speed test recorded",
		logging.String("model", key.Model),
		logging.Float64("ratio", ratio),
		logging.Float64("wall_seconds", elapsed))

	return Result{
		Key:              key,
		Ratio:            ratio,
		ClipAudioSeconds: audioSeconds,
		MeasuredSeconds:  elapsed,
		EffectiveOptions: effective,
	}, nil
}
