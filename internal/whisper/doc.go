// Package whisper builds command lines for the whisper CLI and probes what
// the installed build supports.
package whisper
