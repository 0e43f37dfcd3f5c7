// Package session defines the photo rotation session: the mutable State owned
// by the rotation engine, the versioned Snapshot written by persistence
// stores, and the View handed to user interfaces.
//
// Invariants held by every State the engine produces, and checked by
// Snapshot.Validate on anything read back from disk:
//
//   - CurrentIndex is -1 or a valid index into Photos
//   - RemainingSeconds is never negative
//   - Status is Running exactly when a tick source is registered
//   - CurrentImageURL, when set, is a photo at or before CurrentIndex
package session
