// Package ffprobe wraps the ffprobe command line tool for media inspection.
package ffprobe
