package speed

import (
	"context"
	"errors"

	"bookscribe/internal/services"
)

// ErrUnmeasurable marks a speed test whose wall-clock time was zero or
// negative. No ratio is persisted for such a run.
var ErrUnmeasurable = errors.New("speed test elapsed time unmeasurable")

// ErrNoEstimate marks an estimate request for a key that was never measured.
// Callers report "no estimate available" rather than guessing from an
// unrelated key.
var ErrNoEstimate = errors.New("no speed measurement for this model and option set")

// Model records speed-test outcomes and answers estimate queries against the
// persisted ratios.
type Model struct {
	store *Store
}

// NewModel wraps a store.
func NewModel(store *Store) *Model {
	return &Model{store: store}
}

// Record computes ratio = audioSeconds / wallSeconds, persists it under key,
// and returns it. A non-positive wallSeconds is a clock anomaly; the run is
// reported failed via ErrUnmeasurable and nothing is persisted.
func (m *Model) Record(ctx context.Context, key RatioKey, audioSeconds, wallSeconds float64) (float64, error) {
	if wallSeconds <= 0 {
		return 0, services.Wrap(ErrUnmeasurable, "speed", "record", "wall clock elapsed was zero or negative", nil)
	}
	if audioSeconds <= 0 {
		return 0, services.Wrap(ErrUnmeasurable, "speed", "record", "audio duration was zero or negative", nil)
	}
	ratio := audioSeconds / wallSeconds
	if err := m.store.Put(ctx, key, ratio); err != nil {
		return 0, err
	}
	return ratio, nil
}

// Estimate predicts the wall-clock seconds needed to transcribe audioSeconds
// of audio under key. A key with no prior measurement returns ErrNoEstimate.
func (m *Model) Estimate(ctx context.Context, key RatioKey, audioSeconds float64) (float64, error) {
	entry, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return 0, ErrNoEstimate
		}
		return 0, err
	}
	if entry.Ratio <= 0 {
		return 0, ErrNoEstimate
	}
	return audioSeconds / entry.Ratio, nil
}

// Ratios lists every persisted measurement.
func (m *Model) Ratios(ctx context.Context) ([]Entry, error) {
	return m.store.List(ctx)
}
