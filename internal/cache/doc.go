// Package cache keeps a local SQLite copy of what the console has observed:
// the latest snapshot of each watched submission, its status history and the
// last fetched score sheet of each session.
//
// The cache is read-only with respect to the server. It never feeds writes
// and can be deleted at any time.
package cache
