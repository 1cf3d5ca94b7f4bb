// Package logging builds slog loggers for the server and CLI.
//
// It maps config values to handler options, fans output out to stdout and a
// log file, and provides the Attr helpers the rest of the repository uses so
// call sites never import log/slog directly for attribute construction.
package logging
