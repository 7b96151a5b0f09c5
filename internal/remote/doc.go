// Package remote is the JSON-over-HTTP client for the academy backend.
//
// Every failed call comes back as an *APIError carrying a Code (LOCKED,
// VALIDATION, NOT_FOUND, UNAVAILABLE or UNKNOWN) so callers can branch with
// IsLocked, IsNotFound and IsTransient and show OperatorMessage to a person.
// Endpoints whose path shape differs between backend deployments go through
// DoChain, an ordered fallback chain with a bounded number of attempts.
package remote
