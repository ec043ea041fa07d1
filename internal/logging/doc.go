// Package logging builds the slog loggers used across the daemon and CLI and
// provides the shared attribute and context helpers that keep structured
// fields consistent between components.
package logging
