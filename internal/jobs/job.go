package jobs

import (
	"errors"
	"time"

	"bookscribe/internal/whisper"
)

// ErrAlreadyRunning signals that a non-terminal job already occupies the
// slot for the requested key. It is a control-flow result, not a failure;
// callers should poll the existing job.
var ErrAlreadyRunning = errors.New("job already running for this file")

// State describes where a job is in its lifecycle.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Key identifies a job slot. At most one non-terminal job exists per key.
type Key struct {
	Book string `json:"book"`
	File string `json:"file"`
}

// Job is one tracked transcription attempt. The registry owns it; the
// runner's reader goroutine appends log lines and records the terminal state.
type Job struct {
	ID               string
	Key              Key
	State            State
	Options          whisper.Options
	EffectiveOptions whisper.Options
	Log              *LogBuffer
	StartedAt        time.Time
	EndedAt          time.Time
	ExitCode         *int
	Cancelled        bool
}

// View is a read-only snapshot of a job for status queries.
type View struct {
	ID               string          `json:"id"`
	Book             string          `json:"book"`
	File             string          `json:"file"`
	State            State           `json:"state"`
	Options          whisper.Options `json:"options"`
	EffectiveOptions whisper.Options `json:"effective_options"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          time.Time       `json:"ended_at,omitzero"`
	ElapsedSeconds   float64         `json:"elapsed_seconds"`
	ExitCode         *int            `json:"exit_code,omitempty"`
	Cancelled        bool            `json:"cancelled,omitempty"`
	LogTail          []string        `json:"log_tail,omitempty"`
}

const logTailLines = 20

func (j *Job) view(now time.Time) View {
	end := j.EndedAt
	if end.IsZero() {
		end = now
	}
	return View{
		ID:               j.ID,
		Book:             j.Key.Book,
		File:             j.Key.File,
		State:            j.State,
		Options:          j.Options,
		EffectiveOptions: j.EffectiveOptions,
		StartedAt:        j.StartedAt,
		EndedAt:          j.EndedAt,
		ElapsedSeconds:   end.Sub(j.StartedAt).Seconds(),
		ExitCode:         j.ExitCode,
		Cancelled:        j.Cancelled,
		LogTail:          j.Log.Tail(logTailLines),
	}
}
