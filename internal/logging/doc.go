// Package logging assembles structured slog loggers for dispatchscan.
//
// It owns the console and JSON handlers, level parsing, output fan-out to
// stdout plus the session log file, and the attribute helpers used across the
// scanning pipeline. Standard field keys (component, event_type, error_hint,
// impact, session_id) keep log lines from the capture source, pipeline, and
// backend client queryable with the same vocabulary.
//
// Use NewNop in tests and in wiring code that must not fail.
package logging
