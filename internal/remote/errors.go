package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code classifies a failed backend call.
type Code string

const (
	CodeLocked      Code = "LOCKED"
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeUnknown     Code = "UNKNOWN"
)

// APIError is returned for every non-2xx response and for transport failures.
// Status is zero when no response was received.
type APIError struct {
	Method     string
	Path       string
	Status     int
	Code       Code
	Detail     string
	LockReason string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(e.Method + " " + e.Path))
	if e.Status > 0 {
		fmt.Fprintf(&b, ": %d", e.Status)
	}
	b.WriteString(" ")
	b.WriteString(string(e.Code))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.LockReason != "" {
		b.WriteString(" (")
		b.WriteString(e.LockReason)
		b.WriteString(")")
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// routeMissing reports a response meaning the path shape does not exist on
// this backend, as opposed to the resource behind it.
func (e *APIError) routeMissing() bool {
	switch e.Status {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsLocked reports a write rejected because the score block is finalized.
func IsLocked(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeLocked
}

func IsNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeNotFound
}

func IsValidation(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeValidation
}

// IsTransient reports failures a later request may not hit: transport errors,
// 5xx and 429.
func IsTransient(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeUnavailable
}

// IsUnimplemented reports a 404 or 501, the answers a backend gives for an
// endpoint it has not rolled out yet.
func IsUnimplemented(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusNotImplemented)
}

// LockReason returns the server-provided lock reason, if any.
func LockReason(err error) string {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.LockReason
	}
	return ""
}

// OperatorMessage renders a short message suitable for an operator after a
// failed call.
func OperatorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out; check the connection and try again."
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	apiErr, ok := asAPIError(err)
	if !ok {
		return err.Error()
	}
	switch apiErr.Code {
	case CodeLocked:
		if apiErr.LockReason != "" {
			return "Score is locked: " + apiErr.LockReason
		}
		return "Score is locked and cannot be edited."
	case CodeValidation:
		if apiErr.Detail != "" {
			return "Rejected by server: " + apiErr.Detail
		}
		return "Rejected by server."
	case CodeNotFound:
		return "Not found on server."
	case CodeUnavailable:
		return "Server unavailable; try again shortly."
	default:
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fmt.Sprintf("Request failed (%d).", apiErr.Status)
	}
}

type errorBody struct {
	Code       string  `json:"code"`
	Detail     any     `json:"detail"`
	Message    string  `json:"message"`
	LockReason *string `json:"lock_reason"`
}

func newStatusError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		apiErr.Detail = detailText(parsed.Detail)
		if apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(parsed.Message)
		}
		if parsed.LockReason != nil {
			apiErr.LockReason = strings.TrimSpace(*parsed.LockReason)
		}
		if apiErr.Detail == "" && status == http.StatusBadRequest {
			apiErr.Detail = fieldErrors(body)
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(status)
	}

	serverCode := strings.ToUpper(strings.TrimSpace(parsed.Code))
	switch {
	case status == http.StatusConflict && serverCode == string(CodeLocked):
		apiErr.Code = CodeLocked
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		apiErr.Code = CodeValidation
	case status == http.StatusNotFound:
		apiErr.Code = CodeNotFound
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		apiErr.Code = CodeUnavailable
	default:
		apiErr.Code = CodeUnknown
	}
	return apiErr
}

func detailText(detail any) string {
	switch v := detail.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// fieldErrors flattens a {"field": ["message"]} validation body.
func fieldErrors(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "code" || key == "lock_reason" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if text := detailText(fields[key]); text != "" {
			parts = append(parts, key+": "+text)
		}
	}
	return strings.Join(parts, "; ")
}
