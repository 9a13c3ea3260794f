// Package callstore persists clients and call records in SQLite and acts as
// the sole arbiter of call-group claims. Claim transitions are implemented as
// row-level conditional updates so that concurrent claimers resolve to
// exactly one winner without any additional locking.
package callstore
