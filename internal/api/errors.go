package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any 401 reply and any request made without a
// usable token. The caller should sign out.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound matches 404 replies
var ErrNotFound = errors.New("not found")

// Error is a non-2xx reply from the backend
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is lets errors.Is match the sentinel for the reply's status
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// newError extracts a message from a JSON "message" or "error" field, or
// uses a short plain-text body as is.
func newError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
		return e
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		e.Message = text
	}
	return e
}

// Message returns the text to show a user for err
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
