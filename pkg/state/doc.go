// Package state persists rotation sessions between runs.
//
// Two backends are provided. FileStore writes a JSON snapshot atomically
// (temporary file, fsync, rename) with an optional backup of the previous
// snapshot. SQLiteStore keeps a single snapshot row in a SQLite database.
// Both report failures as *errors.LoadError and *errors.SaveError so callers
// can leave their in-memory session untouched.
package state
