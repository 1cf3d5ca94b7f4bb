// Package main hosts the bookscribe CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces the transcription facade to the
// terminal: serving the HTTP API, listing books and caption state, running
// and streaming transcription jobs, measuring throughput, and configuration
// scaffolding. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
