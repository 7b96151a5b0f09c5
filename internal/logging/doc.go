// Package logging assembles the structured slog loggers used by scoredesk.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with submission ids, session ids and
// correlation ids. NewNop gives tests and wiring code a logger that cannot
// fail.
package logging
