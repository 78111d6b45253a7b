package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransportError classifies a single transport's send failure.
type TransportError struct {
	Transport string
	Message   string
	Transient bool
	Cause     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	if e.Transport != "" {
		parts = append(parts, e.Transport)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		return "transport error"
	}

	return strings.Join(parts, ": ")
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error is worth retrying on a later attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// AttemptError records one failed attempt inside a fallback chain run.
type AttemptError struct {
	Transport string
	Err       error
}

// ChainError aggregates every attempted transport's error after the whole
// chain is exhausted for a recipient.
type ChainError struct {
	Attempts []AttemptError
}

func (e *ChainError) Error() string {
	if e == nil || len(e.Attempts) == 0 {
		return "all transports failed"
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Transport, attempt.Err))
	}

	return fmt.Sprintf("all transports failed: %s", strings.Join(parts, "; "))
}

// LastTransport returns the name of the transport that made the final attempt.
func (e *ChainError) LastTransport() string {
	if e == nil || len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Transport
}
