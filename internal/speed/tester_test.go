package speed_test

import (
	"context"
	"path/filepath"
	"testing"

	"bookscribe/internal/jobs"
	"bookscribe/internal/logging"
	"bookscribe/internal/speed"
	"bookscribe/internal/testsupport"
	"bookscribe/internal/whisper"
)

func TestTesterRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	source := testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "my_book", "ch1.mp3", 256*1024)

	model := speed.NewModel(testsupport.MustOpenSpeedStore(t, cfg))
	registry := jobs.NewRegistry(logging.NewNop())
	prober := whisper.NewProber(cfg.WhisperBinary(), logging.NewNop())
	tester := speed.NewTester(cfg, model, registry, prober, logging.NewNop())

	result, err := tester.Run(context.Background(), "my_book", source, whisper.Options{
		Model:          cfg.Whisper.Model,
		WordTimestamps: true,
		HighlightWords: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Ratio <= 0 {
		t.Fatalf("ratio = %v, want positive", result.Ratio)
	}
	if result.ClipAudioSeconds != 15 {
		t.Fatalf("clip audio seconds = %v, want 15 from probe", result.ClipAudioSeconds)
	}
	if result.MeasuredSeconds <= 0 {
		t.Fatalf("measured seconds = %v, want positive", result.MeasuredSeconds)
	}

	// The measurement is immediately queryable.
	estimate, err := model.Estimate(context.Background(), result.Key, 90)
	if err != nil {
		t.Fatalf("Estimate after Run: %v", err)
	}
	if estimate <= 0 {
		t.Fatalf("estimate = %v, want positive", estimate)
	}

	// The speed-test job occupied the synthetic slot and is now terminal.
	view, ok := registry.Status(jobs.Key{Book: "my_book", File: speed.SpeedTestFile})
	if !ok {
		t.Fatal("no job recorded under the speed-test slot")
	}
	if view.State != jobs.StateSucceeded {
		t.Fatalf("job state = %s, want succeeded", view.State)
	}
}

func TestTesterRunMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	model := speed.NewModel(testsupport.MustOpenSpeedStore(t, cfg))
	registry := jobs.NewRegistry(logging.NewNop())
	prober := whisper.NewProber(cfg.WhisperBinary(), logging.NewNop())
	tester := speed.NewTester(cfg, model, registry, prober, logging.NewNop())

	missing := filepath.Join(cfg.Paths.LibraryDir, "my_book", "absent.mp3")
	if _, err := tester.Run(context.Background(), "my_book", missing, whisper.Options{Model: "medium"}); err == nil {
		t.Fatal("expected error for missing source file")
	}
}
