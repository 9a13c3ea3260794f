// Package ingest turns raw call-log observations into canonical call
// records. Observations are polled from the device call log, filtered by the
// monitored-number registry and the business-line filter, normalized, and
// persisted through the shared store. Failed inserts are queued locally and
// retried under the same idempotency key so retries never duplicate records.
package ingest
