// Package jobs tracks transcription processes. It owns the per-file job
// slots, the streaming process runner, and the bounded batch dispatcher.
package jobs
