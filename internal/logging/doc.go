// Package logging assembles structured slog loggers and formatting helpers used
// across the wellbeing host, the framework service, and the CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, event_type,
// error_hint, impact) so warnings always carry cause, impact and next step.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
