// Package statussync polls submissions until they reach a settled status.
//
// A Watcher issues one fetch immediately and then one per interval. Each fetch
// carries a sequence number; a completion is applied only when nothing issued
// later has been applied yet, so a slow response can never roll the observed
// status backwards. Watches end when the submission is done or failed, when it
// blocks on needs_identification (unless configured to keep polling), when the
// attempt or duration ceiling is reached, or when the caller cancels.
//
// Registry keeps one watch per id inside a process and exposes Refresh for
// out-of-band fetches. AcquireLock extends the one-watch rule across
// processes with a file lock in the state directory.
package statussync
