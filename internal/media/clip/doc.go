// Package clip extracts short audio samples with ffmpeg for timing runs.
package clip
