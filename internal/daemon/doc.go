// Package daemon coordinates the long-running bookscribe process.
//
// It wires configuration, the transcription facade, and the speed store into
// a single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP API the web UI consumes. Orchestration of individual
// jobs lives in the jobs package; the daemon focuses on startup, shutdown,
// and the request surface.
package daemon
