// Package logging assembles structured slog loggers and formatting helpers used
// across webar services.
//
// It owns the configurable console/JSON handlers, tees records into the JSON
// log file under log_dir, and exposes context-aware helpers so pipeline code
// can tag log lines with asset IDs, slugs, stages, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
