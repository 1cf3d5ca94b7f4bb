package api

import (
	"bookscribe/internal/jobs"
	"bookscribe/internal/speed"
	"bookscribe/internal/transcriber"
	"bookscribe/internal/whisper"
)

// CapabilitiesResponse reports the installed whisper build's optional flags.
type CapabilitiesResponse struct {
	Capabilities whisper.Capabilities `json:"capabilities"`
}

// BookSummary describes one book directory.
type BookSummary struct {
	Name         string `json:"name"`
	DisplayTitle string `json:"display_title"`
	FileCount    int    `json:"file_count"`
}

// BookListResponse lists the books in the library.
type BookListResponse struct {
	Books []BookSummary `json:"books"`
}

// FileListResponse carries per-file caption and job state for a book.
type FileListResponse struct {
	Book  string                   `json:"book"`
	Files []transcriber.FileStatus `json:"files"`
}

// TranscribeRequest starts one transcription job. Omitted option fields fall
// back to the daemon's configured whisper settings.
type TranscribeRequest struct {
	Book           string `json:"book"`
	File           string `json:"file"`
	Model          string `json:"model,omitempty"`
	WordTimestamps *bool  `json:"word_timestamps,omitempty"`
	HighlightWords *bool  `json:"highlight_words,omitempty"`
}

// TranscribeResponse acknowledges an admitted job.
type TranscribeResponse struct {
	JobID string `json:"job_id"`
}

// BatchRequest starts transcription of every uncaptioned file in a book.
type BatchRequest struct {
	Book           string `json:"book"`
	Model          string `json:"model,omitempty"`
	WordTimestamps *bool  `json:"word_timestamps,omitempty"`
	HighlightWords *bool  `json:"highlight_words,omitempty"`
	Parallel       bool   `json:"parallel"`
	MaxWorkers     int    `json:"max_workers,omitempty"`
}

// BatchResponse acknowledges a dispatched batch.
type BatchResponse struct {
	BatchID string           `json:"batch_id"`
	Counts  jobs.BatchCounts `json:"counts"`
}

// JobLogResponse carries incremental log lines for a job.
type JobLogResponse struct {
	Lines    []string   `json:"lines"`
	Next     int        `json:"next"`
	State    jobs.State `json:"state"`
	ExitCode *int       `json:"exit_code,omitempty"`
}

// JobListResponse lists every tracked job.
type JobListResponse struct {
	Jobs []jobs.View `json:"jobs"`
}

// SpeedTestRequest measures transcription throughput for a book.
type SpeedTestRequest struct {
	Book           string `json:"book"`
	File           string `json:"file,omitempty"`
	Model          string `json:"model,omitempty"`
	WordTimestamps *bool  `json:"word_timestamps,omitempty"`
	HighlightWords *bool  `json:"highlight_words,omitempty"`
}

// SpeedTestResponse reports a recorded measurement.
type SpeedTestResponse struct {
	Result speed.Result `json:"result"`
}

// EstimateResponse predicts a transcription run time.
type EstimateResponse struct {
	Book             string  `json:"book"`
	File             string  `json:"file"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
}

// DependencyStatus mirrors a preflight check over the wire.
type DependencyStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse reports daemon health and preflight results.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LibraryDir   string             `json:"library_dir"`
	SpeedDBPath  string             `json:"speed_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Checks       []DependencyStatus `json:"checks"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
