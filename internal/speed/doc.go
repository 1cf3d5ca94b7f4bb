// Package speed maintains the empirical throughput model used to estimate
// transcription run times. Measured ratios persist in SQLite across restarts.
package speed
