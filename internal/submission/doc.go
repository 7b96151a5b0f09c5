// Package submission models an uploaded assessment artifact and the status
// state machine the processing service moves it through.
//
// Status values come from the server and are never written by the client.
// The package answers questions about them: whether synchronization may stop,
// whether a retry is allowed, whether a manual review is advised and how a
// status is labelled.
package submission
