// Package logging provides slog-based structured logging for calldesk with
// console and JSON handlers, standardized field keys, and context-derived
// attributes for call, group, and agent identifiers.
package logging
