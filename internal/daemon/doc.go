// Package daemon wires the long-running calldesk process: the shared call
// store, the call-log monitor, the telephony line monitor, the change-feed
// hub, the SLA watcher, and the HTTP API. It enforces single-instance
// execution through a lock file.
package daemon
