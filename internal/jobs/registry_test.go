package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bookscribe/internal/logging"
	"bookscribe/internal/services"
)

// gatedScript blocks until the gate file appears, then exits with the given
// code. It lets tests hold a job in the running state deterministically.
func gatedScript(t *testing.T, exitCode string) (binary, gate string) {
	t.Helper()
	dir := t.TempDir()
	gate = filepath.Join(dir, "gate")
	binary = writeScript(t, "gated",
		"echo working\nwhile [ ! -f "+gate+" ]; do sleep 0.02; done\nexit "+exitCode)
	return binary, gate
}

func openGate(t *testing.T, gate string) {
	t.Helper()
	if err := os.WriteFile(gate, nil, 0o644); err != nil {
		t.Fatalf("open gate: %v", err)
	}
}

func waitForState(t *testing.T, reg *Registry, key Key, want State) View {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		view, ok := reg.Status(key)
		if ok && view.State == want {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached state %s, last view %+v ok=%v", want, view, ok)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitRejectsWhileRunning(t *testing.T) {
	binary, gate := gatedScript(t, "0")
	reg := NewRegistry(logging.NewNop())
	key := Key{Book: "bookA", File: "ch1.mp3"}

	id, err := reg.Submit(key, Spec{Binary: binary})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if id == "" {
		t.Fatal("empty job id")
	}

	if _, err := reg.Submit(key, Spec{Binary: binary}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second submit error = %v, want ErrAlreadyRunning", err)
	}

	openGate(t, gate)
	waitForState(t, reg, key, StateSucceeded)

	// Terminal slot is replaced by a fresh submission.
	binary2, gate2 := gatedScript(t, "0")
	id2, err := reg.Submit(key, Spec{Binary: binary2})
	if err != nil {
		t.Fatalf("resubmit after completion: %v", err)
	}
	if id2 == id {
		t.Fatal("resubmission reused the old job id")
	}
	openGate(t, gate2)
	waitForState(t, reg, key, StateSucceeded)
}

func TestConcurrentSubmitAdmitsExactlyOne(t *testing.T) {
	binary, gate := gatedScript(t, "0")
	reg := NewRegistry(logging.NewNop())
	key := Key{Book: "bookA", File: "ch1.mp3"}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Submit(key, Spec{Binary: binary})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrAlreadyRunning):
			rejected++
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted)
	}
	if rejected != attempts-1 {
		t.Fatalf("rejected = %d, want %d", rejected, attempts-1)
	}

	openGate(t, gate)
	waitForState(t, reg, key, StateSucceeded)
}

func TestFailedProcessRetainsLog(t *testing.T) {
	binary := writeScript(t, "failing", "echo diagnostic detail\nexit 2")
	reg := NewRegistry(logging.NewNop())
	key := Key{Book: "bookB", File: "ch2.mp3"}

	if _, err := reg.Submit(key, Spec{Binary: binary}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view := waitForState(t, reg, key, StateFailed)
	if view.ExitCode == nil || *view.ExitCode != 2 {
		t.Fatalf("exit code = %v, want 2", view.ExitCode)
	}

	lines, _, state, ok := reg.LogSince(key, 0)
	if !ok {
		t.Fatal("LogSince found no job")
	}
	if state != StateFailed {
		t.Fatalf("state = %s, want failed", state)
	}
	if len(lines) == 0 || lines[0] != "diagnostic detail" {
		t.Fatalf("log = %v, want captured diagnostic output", lines)
	}
}

func TestSubmitSpawnFailureMarksJobFailed(t *testing.T) {
	reg := NewRegistry(logging.NewNop())
	key := Key{Book: "bookC", File: "ch3.mp3"}

	_, err := reg.Submit(key, Spec{Binary: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}

	view, ok := reg.Status(key)
	if !ok {
		t.Fatal("no job recorded for failed spawn")
	}
	if view.State != StateFailed {
		t.Fatalf("state = %s, want failed", view.State)
	}

	// The slot is free again for a retry.
	binary, gate := gatedScript(t, "0")
	if _, err := reg.Submit(key, Spec{Binary: binary}); err != nil {
		t.Fatalf("resubmit after spawn failure: %v", err)
	}
	openGate(t, gate)
	waitForState(t, reg, key, StateSucceeded)
}

func TestCancelMarksJobFailedWithMarker(t *testing.T) {
	binary := writeScript(t, "longrun", "echo started\nsleep 60")
	reg := NewRegistry(logging.NewNop())
	key := Key{Book: "bookA", File: "long.mp3"}

	if _, err := reg.Submit(key, Spec{Binary: binary}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForState(t, reg, key, StateRunning)

	if err := reg.Cancel(key); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	view := waitForState(t, reg, key, StateFailed)
	if !view.Cancelled {
		t.Fatal("view.Cancelled = false after cancel")
	}

	lines, _, _, _ := reg.LogSince(key, 0)
	found := false
	for _, line := range lines {
		if line == "[cancelled]" {
			found = true
		}
	}
	if !found {
		t.Fatalf("log %v missing cancellation marker", lines)
	}
}

func TestCancelWithoutJob(t *testing.T) {
	reg := NewRegistry(logging.NewNop())
	if err := reg.Cancel(Key{Book: "none", File: "none.mp3"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStatusUnknownKey(t *testing.T) {
	reg := NewRegistry(logging.NewNop())
	if _, ok := reg.Status(Key{Book: "x", File: "y.mp3"}); ok {
		t.Fatal("Status reported a job for an unknown key")
	}
	if _, _, _, ok := reg.LogSince(Key{Book: "x", File: "y.mp3"}, 0); ok {
		t.Fatal("LogSince reported a job for an unknown key")
	}
}

func TestListOrdersByKey(t *testing.T) {
	reg := NewRegistry(logging.NewNop())
	binary := writeScript(t, "instant", "exit 0")

	keys := []Key{
		{Book: "zeta", File: "a.mp3"},
		{Book: "alpha", File: "b.mp3"},
		{Book: "alpha", File: "a.mp3"},
	}
	for _, key := range keys {
		if _, err := reg.Submit(key, Spec{Binary: binary}); err != nil {
			t.Fatalf("submit %v: %v", key, err)
		}
		waitForState(t, reg, key, StateSucceeded)
	}

	views := reg.List()
	if len(views) != 3 {
		t.Fatalf("List returned %d views", len(views))
	}
	if views[0].Book != "alpha" || views[0].File != "a.mp3" {
		t.Fatalf("first view = %s/%s", views[0].Book, views[0].File)
	}
	if views[2].Book != "zeta" {
		t.Fatalf("last view book = %s", views[2].Book)
	}
}
