// Package services defines shared error utilities consumed by the job
// orchestrator and external tool integrations.
//
// The structured error markers plus the Wrap helper keep failure classification
// consistent: handlers and the CLI can branch on errors.Is against a sentinel
// instead of parsing message text.
package services
