// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. NoOpLogger is the default everywhere logging is optional.
package logging
