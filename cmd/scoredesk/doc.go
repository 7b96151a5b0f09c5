// Command scoredesk is the operator console for submission grading and score
// entry.
//
// Submission commands fetch, list, watch and retry grading jobs; watches poll
// until a job settles and are recorded in the local cache. Review commands
// correct machine-extracted answers before regrading. Score commands render a
// session sheet with pass and clinic results, export it to a workbook, and
// write homework and exam item scores with lock-aware error reporting.
package main
