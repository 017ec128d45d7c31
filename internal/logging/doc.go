// Package logging assembles structured slog loggers and formatting helpers used
// across callqa.
//
// It owns the configurable console/JSON handlers, tees terminal output into a
// JSON log file, and exposes context-aware helpers so pipeline stages tag log
// lines with call IDs, stage names, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
