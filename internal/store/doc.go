// Package store persists station-local state in SQLite: the scanner settings
// key/value table and a journal of every successful submission.
//
// The schema is owned by embedded goose migrations applied on Open. Writes
// retry briefly on SQLITE_BUSY so the console, the status API, and capture
// goroutines can share one database handle.
package store
