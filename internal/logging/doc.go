// Package logging assembles the structured slog loggers used by camtrap.
//
// It owns the console and JSON handlers, level parsing, and output routing
// (stdout or stderr plus an optional JSON log file), and exposes helpers that
// tag log lines with run IDs, export job IDs, format IDs, and correlation IDs
// pulled from context. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
