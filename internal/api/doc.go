// Package api defines the wire-format types shared by the daemon's HTTP
// handlers and any client rendering them. Payloads use snake_case JSON tags
// so the web UI can consume them without translation.
package api
