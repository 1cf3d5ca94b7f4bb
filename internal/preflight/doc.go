// Package preflight provides readiness checks for the filesystem paths and
// external binaries bookscribe depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup so a missing transcription tool is
//     reported as a capability failure before any job is accepted.
//   - The CLI "bookscribe status" command renders the same results as a table.
package preflight
