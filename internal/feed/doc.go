// Package feed carries store changes to connected devices over websockets.
// The daemon side is a broadcast hub implementing callstore.Publisher; the
// device side is a subscriber that re-fetches affected groups instead of
// merging deltas, and performs a full resync on every reconnect.
package feed
