package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for non-2xx responses. Body has already been through
// NormalizeBody.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Envelope decodes the error body as a JSON object; nil when it is not one.
func (e *APIError) Envelope() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(e.Body, &m); err != nil {
		return nil
	}
	return m
}

// IsUnauthorized reports whether the backend rejected the credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Body:       body,
		Message:    messageFrom(body, status),
	}
}

// messageFrom prefers the backend's own message, then http.StatusText.
func messageFrom(body []byte, status int) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		for _, raw := range []json.RawMessage{env.Message, env.Error} {
			if msg := rawText(raw); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}

// rawText renders a message field that may be a string or a list of strings.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// MessageOf returns the user-facing message for err: the backend message for
// an APIError, fallback otherwise.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
