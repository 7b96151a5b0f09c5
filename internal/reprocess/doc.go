// Package reprocess asks the backend to re-run recognition and grading for
// submissions that failed or are waiting on identification.
package reprocess
