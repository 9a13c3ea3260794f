// Package notifications delivers push notifications through ntfy. When no
// topic is configured every call is a silent no-op, so callers never need to
// branch on notification availability.
package notifications
