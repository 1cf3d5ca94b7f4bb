package jobs

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookscribe/internal/logging"
	"bookscribe/internal/services"
	"bookscribe/internal/whisper"
)

// Spec describes the process a submitted job should run.
type Spec struct {
	Binary           string
	Args             []string
	Options          whisper.Options
	EffectiveOptions whisper.Options
	// OnDone fires after the terminal state is recorded. Optional.
	OnDone func(*Job)
}

// Registry tracks one job slot per key and enforces at-most-one non-terminal
// job per key. The registry mutex only guards the slot map; each slot carries
// its own lock so unrelated files never contend.
type Registry struct {
	logger *slog.Logger

	mu    sync.Mutex
	slots map[Key]*slot

	start func(binary string, args []string, onLine func(string)) (*Handle, error)
}

type slot struct {
	mu     sync.Mutex
	job    *Job
	handle *Handle
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		logger: logger,
		slots:  make(map[Key]*slot),
		start:  StartProcess,
	}
}

func (r *Registry) slotFor(key Key) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
	}
	return s
}

func (r *Registry) lookup(key Key) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[key]
}

// Submit admits a job for key and spawns its process. A non-terminal job
// already in the slot rejects the submission with ErrAlreadyRunning; a
// terminal job is replaced and its log discarded. The check and the slot
// claim happen under the slot lock, so concurrent submissions for the same
// key admit exactly one.
func (r *Registry) Submit(key Key, spec Spec) (string, error) {
	s := r.slotFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && !s.job.State.Terminal() {
		return "", ErrAlreadyRunning
	}

	job := &Job{
		ID:               uuid.NewString(),
		Key:              key,
		State:            StateQueued,
		Options:          spec.Options,
		EffectiveOptions: spec.EffectiveOptions,
		Log:              NewLogBuffer(),
		StartedAt:        time.Now(),
	}
	s.job = job

	handle, err := r.start(spec.Binary, spec.Args, job.Log.Append)
	if err != nil {
		job.Log.Append("failed to start: " + err.Error())
		job.State = StateFailed
		job.EndedAt = time.Now()
		r.logger.Error("job failed to start",
			logging.String("book", key.Book),
			logging.String("file", key.File),
			logging.Error(err))
		return job.ID, services.Wrap(services.ErrExternalTool, "jobs", "submit", "spawn transcription process", err)
	}
	job.State = StateRunning
	s.handle = handle

	r.logger.Info("job started",
		logging.String("job_id", job.ID),
		logging.String("book", key.Book),
		logging.String("file", key.File),
		logging.String("model", spec.EffectiveOptions.Model))

	go r.finalize(s, job, handle, spec.OnDone)
	return job.ID, nil
}

// finalize waits for the process and records the terminal state.
func (r *Registry) finalize(s *slot, job *Job, handle *Handle, onDone func(*Job)) {
	code, _ := handle.Wait()

	s.mu.Lock()
	job.EndedAt = time.Now()
	job.ExitCode = &code
	switch {
	case handle.WasCancelled():
		job.Cancelled = true
		job.State = StateFailed
		job.Log.Append("[cancelled]")
	case code == 0:
		job.State = StateSucceeded
	default:
		job.State = StateFailed
	}
	state := job.State
	s.handle = nil
	s.mu.Unlock()

	r.logger.Info("job finished",
		logging.String("job_id", job.ID),
		logging.String("book", job.Key.Book),
		logging.String("file", job.Key.File),
		logging.String("state", string(state)),
		logging.Int("exit_code", code))

	if onDone != nil {
		onDone(job)
	}
}

// Status returns a snapshot of the job occupying key's slot.
func (r *Registry) Status(key Key) (View, bool) {
	s := r.lookup(key)
	if s == nil {
		return View{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return View{}, false
	}
	return s.job.view(time.Now()), true
}

// LogSince returns log lines at or after cursor together with the next
// cursor and the job state observed after the read. Reading the state after
// draining the buffer guarantees a terminal state is only reported once the
// final lines have been delivered.
func (r *Registry) LogSince(key Key, cursor int) (lines []string, next int, state State, ok bool) {
	s := r.lookup(key)
	if s == nil {
		return nil, cursor, "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return nil, cursor, "", false
	}
	lines, next = s.job.Log.Since(cursor)
	return lines, next, s.job.State, true
}

// Cancel kills the running process for key, best effort. Cancelling a job
// that is not running returns ErrNotFound.
func (r *Registry) Cancel(key Key) error {
	s := r.lookup(key)
	if s == nil {
		return services.Wrap(services.ErrNotFound, "jobs", "cancel", "no job for key", nil)
	}
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return services.Wrap(services.ErrNotFound, "jobs", "cancel", "no running job for key", nil)
	}
	handle.Cancel()
	return nil
}

// List returns snapshots of every tracked job, ordered by key.
func (r *Registry) List() []View {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.slots))
	for key := range r.slots {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Book != keys[j].Book {
			return keys[i].Book < keys[j].Book
		}
		return keys[i].File < keys[j].File
	})

	views := make([]View, 0, len(keys))
	for _, key := range keys {
		if view, ok := r.Status(key); ok {
			views = append(views, view)
		}
	}
	return views
}
