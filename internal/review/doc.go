// Package review reads and commits manual corrections of the data extracted
// from an answer sheet: the student identifier and per-question answers.
//
// Saving a review asks the server to regrade. The client never computes or
// sends scores here, and edits are kept in a Draft that is discarded after a
// commit attempt, so a failed save leaves nothing half-applied locally.
package review
