// Package library provides the filesystem view over the audiobook collection.
//
// Books are plain subdirectories of the configured library root; audio files
// are .mp3 entries inside a book and caption artifacts are the sibling .vtt
// files the external transcription tool writes. The package never creates or
// deletes media; it only resolves, lists, and inspects.
package library
