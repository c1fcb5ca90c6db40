package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	// Fields holds per-field validation messages from a 400 response.
	Fields map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for name, msg := range e.Fields {
		parts = append(parts, name+": "+msg)
	}
	return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Type: http.StatusText(status)}
	var payload struct {
		Detail string            `json:"detail"`
		Fields map[string]string `json:"fields"`
		Error  struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	e.Message = payload.Detail
	if e.Message == "" {
		e.Message = payload.Error.Message
	}
	if payload.Error.Type != "" {
		e.Type = payload.Error.Type
	}
	e.Fields = payload.Fields
	return e
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
