// Package api defines the transport-friendly views of call state shared by
// the HTTP handlers, the IPC server, and the CLI. Services here are
// read-only; mutations go through the reservation service.
package api
