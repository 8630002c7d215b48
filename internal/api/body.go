package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sakif/habit-tracker/internal/apperror"
)

// Body is a response body. It is treated as JSON only when its trimmed text
// starts with '{' or '['; anything else is passed through as raw text.
type Body struct {
	Raw    []byte
	IsJSON bool
}

func newBody(raw []byte) *Body {
	trimmed := bytes.TrimSpace(raw)
	isJSON := len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
	return &Body{Raw: raw, IsJSON: isJSON}
}

// ErrNotJSON is returned by Decode when the body is plain text.
var ErrNotJSON = errors.New("api: response body is not JSON")

// Decode unmarshals a JSON body into v.
func (b *Body) Decode(v any) error {
	if b == nil || !b.IsJSON {
		return ErrNotJSON
	}
	if err := json.Unmarshal(b.Raw, v); err != nil {
		return fmt.Errorf("api: decoding response: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (b *Body) Text() string {
	if b == nil {
		return ""
	}
	return string(b.Raw)
}

// IsArray reports whether the body is a JSON array.
func (b *Body) IsArray() bool {
	if b == nil || !b.IsJSON {
		return false
	}
	return bytes.TrimSpace(b.Raw)[0] == '['
}

// Error is a non-success HTTP response. It carries the status and the
// parsed body so callers can show the server's detail message.
type Error struct {
	Method string
	Path   string
	Status int
	Body   *Body
}

func (e *Error) Error() string {
	if d := e.Detail(); d != "" {
		return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Status, d)
	}
	return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Status)
}

// Detail returns the server-supplied message: the "detail" field of a JSON
// object body (re-encoded if it isn't a string), or the raw text otherwise.
func (e *Error) Detail() string {
	if e.Body == nil {
		return ""
	}
	if !e.Body.IsJSON {
		return string(bytes.TrimSpace(e.Body.Raw))
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e.Body.Raw, &obj); err != nil {
		return ""
	}
	raw, ok := obj["detail"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Unwrap maps the status onto the shared sentinels so callers can write
// errors.Is(err, apperror.ErrNotFound).
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusConflict:
		return apperror.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.ErrValidation
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
