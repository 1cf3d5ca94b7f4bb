package jobs

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"bookscribe/internal/logging"
)

// DefaultMaxWorkers bounds batch concurrency when the caller does not set one.
const DefaultMaxWorkers = 2

// Batch tracks the outcome of one dispatch call. The lists settle as files
// are admitted; Done closes once every admitted job has finished.
type Batch struct {
	ID string

	mu             sync.Mutex
	started        []string
	skipped        []string
	alreadyRunning []string
	failed         []string

	done chan struct{}
}

// BatchCounts is a snapshot of a batch's per-file outcomes.
type BatchCounts struct {
	Started        []string `json:"started"`
	Skipped        []string `json:"skipped"`
	AlreadyRunning []string `json:"already_running"`
	Failed         []string `json:"failed"`
}

// Counts returns the current per-file outcomes.
func (b *Batch) Counts() BatchCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatchCounts{
		Started:        append([]string(nil), b.started...),
		Skipped:        append([]string(nil), b.skipped...),
		AlreadyRunning: append([]string(nil), b.alreadyRunning...),
		Failed:         append([]string(nil), b.failed...),
	}
}

// Done returns a channel closed when all admitted jobs have reached a
// terminal state.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

func (b *Batch) record(list *[]string, file string) {
	b.mu.Lock()
	*list = append(*list, file)
	b.mu.Unlock()
}

// Dispatch admits jobs for files into the registry with at most maxWorkers
// running at once. makeSpec returns the process spec for a file, or ok=false
// to skip it (caption already present). A file whose slot is occupied by an
// unrelated running job is skipped, not treated as a batch error. Dispatch
// returns immediately; admission continues in the background and the batch
// handle reports progress.
func Dispatch(reg *Registry, logger *slog.Logger, book string, files []string, maxWorkers int, makeSpec func(file string) (Spec, bool)) *Batch {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	batch := &Batch{ID: uuid.NewString(), done: make(chan struct{})}

	go func() {
		defer close(batch.done)
		sem := make(chan struct{}, maxWorkers)
		var wg sync.WaitGroup
		for _, file := range files {
			spec, ok := makeSpec(file)
			if !ok {
				batch.record(&batch.skipped, file)
				continue
			}

			sem <- struct{}{}
			wg.Add(1)
			release := func() {
				<-sem
				wg.Done()
			}

			inner := spec.OnDone
			spec.OnDone = func(job *Job) {
				if inner != nil {
					inner(job)
				}
				release()
			}

			if _, err := reg.Submit(Key{Book: book, File: file}, spec); err != nil {
				release()
				if errors.Is(err, ErrAlreadyRunning) {
					batch.record(&batch.alreadyRunning, file)
					continue
				}
				logger.Error("batch submission failed",
					logging.String("book", book),
					logging.String("file", file),
					logging.Error(err))
				batch.record(&batch.failed, file)
				continue
			}
			batch.record(&batch.started, file)
		}
		wg.Wait()
		logger.Info("batch finished",
			logging.String("batch_id", batch.ID),
			logging.String("book", book),
			logging.Int("started", len(batch.Counts().Started)))
	}()

	return batch
}
