// Package reservation drives the call reservation lifecycle: claiming a
// call group for follow-up, releasing it back, and completing it. The store
// is the sole arbiter of claim contention; this package adds the service
// surface, structured logging, notification hooks, and the optimistic view
// overlay used by interactive clients.
package reservation
