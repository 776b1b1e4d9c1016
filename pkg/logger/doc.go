// Package logger builds the process-wide slog logger: text or JSON output,
// a configurable level and an environment attribute on every record.
package logger
