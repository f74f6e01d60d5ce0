// Package streams holds the data model shared by the stream store: events
// submitted for append, messages read back, read pages, and the version and
// position sentinels that form the wire contract.
//
// Key invariants:
//   - StreamVersion is dense per stream, starting at 0
//   - Position is strictly increasing across the whole store and is assigned
//     by the backend, never by this package
//   - Pages are snapshots; nothing here mutates stored data
package streams
