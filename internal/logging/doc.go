// Package logging builds the slog loggers used across the connector.
//
// It supports console and JSON output, fans log lines out to stdout and the
// daemon log file, and exposes attr helpers plus standardized field names so
// the pipeline, watcher, and carrier clients log with a uniform vocabulary.
// Old log files are pruned by age via CleanupOldLogs.
package logging
