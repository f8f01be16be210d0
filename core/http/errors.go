package http

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

var (
	// ErrInvalidRequest is matched by every transport-level parse failure
	ErrInvalidRequest = errors.New("invalid HTTP request")

	ErrEmptyRequest     = fmt.Errorf("%w: request is empty", ErrInvalidRequest)
	ErrMalformedRequest = fmt.Errorf("%w: malformed request", ErrInvalidRequest)
)

// InvalidPathError reports a request target that is not a valid path
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return "invalid path - " + e.Path
}

func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// InvalidMethodError reports a method outside the standard verbs
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return "invalid method - " + e.Method
}

func (e *InvalidMethodError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Error is a structured HTTP failure that converts directly into a response
type Error struct {
	Status  Status
	Headers Headers

	message string
	raw     []byte
	jsonKey string
}

// ErrorOption customizes an Error
type ErrorOption func(*Error)

// WithJSONKey wraps the message into {"<key>": "<message>"}
func WithJSONKey(key string) ErrorOption {
	return func(e *Error) {
		e.jsonKey = key
	}
}

// WithHeader adds a response header
func WithHeader(name, value string) ErrorOption {
	return func(e *Error) {
		e.Headers.Add(name, value)
	}
}

// NewError creates a failure with a text message (may be empty)
func NewError(status Status, message string, opts ...ErrorOption) *Error {
	e := &Error{Status: status, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRawError creates a failure whose body is sent unchanged
func NewRawError(status Status, body []byte, opts ...ErrorOption) *Error {
	e := &Error{Status: status, raw: body}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Message is the text message, empty for raw failures
func (e *Error) Message() string {
	return e.message
}

// Body renders the response body
func (e *Error) Body() []byte {
	switch {
	case e.raw != nil:
		return e.raw
	case e.message == "":
		return []byte{}
	case e.jsonKey != "":
		b, err := json.Marshal(map[string]string{e.jsonKey: e.message})
		if err != nil {
			return []byte(e.message)
		}
		return b
	default:
		return []byte(e.message)
	}
}

// Response converts the failure into a response
func (e *Error) Response() *Response {
	return NewResponse(e.Status, e.Headers.Clone(), e.Body())
}

func (e *Error) Error() string {
	if e.message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s - %s", e.Status, e.message)
}
