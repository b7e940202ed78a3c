package service

import (
	"fmt"
)

// HTTPError is returned by handlers to intentionally reply with a given HTTP status.
// It is passed through the dispatcher untouched and produces the body {"message": Message}.
type HTTPError struct {
	Code    int
	Message string
}

// NewHTTPError creates an HTTPError with a formatted message.
// An empty format uses the standard status text.
func NewHTTPError(code int, format string, args ...interface{}) *HTTPError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if msg == "" {
		msg = statusText(code)
	}
	return &HTTPError{Code: code, Message: msg}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// Reasoner is implemented by errors carrying additional detail.
// The detail is reported as "additInfos" in the 500 error envelope.
type Reasoner interface {
	Reason() string
}
