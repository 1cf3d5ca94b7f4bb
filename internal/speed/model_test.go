package speed_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"bookscribe/internal/speed"
	"bookscribe/internal/testsupport"
)

func newModel(t *testing.T) *speed.Model {
	t.Helper()
	return speed.NewModel(testsupport.MustOpenSpeedStore(t, testsupport.NewConfig(t)))
}

func TestRecordThenEstimate(t *testing.T) {
	model := newModel(t)
	ctx := context.Background()
	key := speed.RatioKey{Model: "medium", WordTimestamps: true}

	// A 15 second clip processed in 5 seconds yields ratio 3.0.
	ratio, err := model.Record(ctx, key, 15, 5)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if math.Abs(ratio-3.0) > 1e-9 {
		t.Fatalf("ratio = %v, want 3.0", ratio)
	}

	// A 90 second file under the same key estimates to 30 seconds.
	estimate, err := model.Estimate(ctx, key, 90)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(estimate-30) > 1e-9 {
		t.Fatalf("estimate = %v, want 30", estimate)
	}
}

func TestEstimateUnknownKey(t *testing.T) {
	model := newModel(t)

	_, err := model.Estimate(context.Background(), speed.RatioKey{Model: "tiny"}, 120)
	if !errors.Is(err, speed.ErrNoEstimate) {
		t.Fatalf("error = %v, want ErrNoEstimate", err)
	}
}

func TestEstimateDoesNotFallBackAcrossOptionSets(t *testing.T) {
	model := newModel(t)
	ctx := context.Background()

	if _, err := model.Record(ctx, speed.RatioKey{Model: "medium"}, 15, 5); err != nil {
		t.Fatalf("Record: %v", err)
	}

	_, err := model.Estimate(ctx, speed.RatioKey{Model: "medium", WordTimestamps: true}, 60)
	if !errors.Is(err, speed.ErrNoEstimate) {
		t.Fatalf("error = %v, want ErrNoEstimate for a different option set", err)
	}
}

func TestRecordUnmeasurable(t *testing.T) {
	model := newModel(t)
	ctx := context.Background()
	key := speed.RatioKey{Model: "medium"}

	for _, wall := range []float64{0, -1} {
		if _, err := model.Record(ctx, key, 15, wall); !errors.Is(err, speed.ErrUnmeasurable) {
			t.Fatalf("wall=%v: error = %v, want ErrUnmeasurable", wall, err)
		}
	}

	// Nothing was persisted for the degenerate runs.
	if _, err := model.Estimate(ctx, key, 60); !errors.Is(err, speed.ErrNoEstimate) {
		t.Fatalf("error = %v, want ErrNoEstimate after unmeasurable runs", err)
	}
}
