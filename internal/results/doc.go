// Package results talks to the score endpoints: the per-session score sheet,
// homework score records and exam item scores.
//
// Writes return the server's updated record. Pass, fail and clinic fields in
// those records are never computed locally.
package results
