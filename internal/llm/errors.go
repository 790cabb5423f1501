package llm

import (
	"fmt"
	"net/http"
	"time"
)

// Class buckets remote-call failures for retry decisions.
type Class int

const (
	// ClassNetwork is a connection or timeout failure. Retryable.
	ClassNetwork Class = iota + 1
	// ClassServer is an upstream 5xx. Retryable.
	ClassServer
	// ClassRateLimit is a 429; RetryAfter carries the server's hint. Retryable.
	ClassRateLimit
	// ClassValidation is a non-429 4xx from a malformed request. Not retryable.
	ClassValidation
)

func (c Class) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassServer:
		return "server"
	case ClassRateLimit:
		return "rate_limit"
	case ClassValidation:
		return "validation"
	}
	return "unknown"
}

// Retryable reports whether a failure of this class is worth retrying.
func (c Class) Retryable() bool {
	return c == ClassNetwork || c == ClassServer || c == ClassRateLimit
}

// Error is a classified remote-call failure.
type Error struct {
	Class      Class
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s error (status %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s error: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func classify(status int) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status >= 500:
		return ClassServer
	default:
		return ClassValidation
	}
}
