package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxMessageLen caps plain-text messages surfaced to users.
const maxMessageLen = 300

// APIError is a non-2xx backend response. Message holds the backend's own
// message when it sent one as plain text (or as a "message" property); Fields
// holds per-field validation messages from structured bodies.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// NetworkError is a request that never produced an HTTP response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// metadataKeys are envelope properties that never describe a field.
var metadataKeys = map[string]bool{
	"timestamp": true,
	"status":    true,
	"error":     true,
	"path":      true,
	"message":   true,
	"trace":     true,
}

func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return apiErr
	}

	switch text[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return apiErr
		}
		if msg, ok := obj["message"].(string); ok {
			apiErr.Message = truncate(msg)
		}
		for k, v := range obj {
			if metadataKeys[k] {
				continue
			}
			if s, ok := v.(string); ok {
				if apiErr.Fields == nil {
					apiErr.Fields = make(map[string]string)
				}
				apiErr.Fields[k] = s
			}
		}
	case '[':
		// Lists of violations carry no single message.
	case '"':
		var s string
		if err := json.Unmarshal([]byte(text), &s); err == nil {
			apiErr.Message = truncate(s)
		}
	default:
		if !strings.HasPrefix(text, "<") {
			apiErr.Message = truncate(text)
		}
	}
	return apiErr
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLen {
		return s
	}
	i := maxMessageLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "…"
}

// IsUnauthorized reports whether err is a missing, invalid or expired
// credential rejection.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// IsValidation reports whether the backend rejected the payload itself.
func IsValidation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity
	}
	return false
}

// FieldErrors returns the per-field validation messages carried by err.
func FieldErrors(err error) map[string]string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

// UserMessage is the text shown in a notification for err: the backend's own
// message when it sent one, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// FieldSummary renders field errors as "field: message" pairs in key order.
func FieldSummary(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
