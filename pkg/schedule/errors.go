package schedule

import (
	"errors"
	"fmt"
)

// OutcomeKind classifies how a single fetch ended.
type OutcomeKind string

const (
	// OutcomeSuccess means a 2xx response with a parseable body.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeAuthFailure means the upstream rejected the session (HTTP 403).
	OutcomeAuthFailure OutcomeKind = "auth_failure"

	// OutcomeHTTPFailure means any other non-2xx response.
	OutcomeHTTPFailure OutcomeKind = "http_failure"

	// OutcomeTransportFailure means a network, timeout or body decoding error.
	OutcomeTransportFailure OutcomeKind = "transport_failure"
)

// Outcome is the tagged result of a fetch. StatusCode is set for auth and
// HTTP failures; Message carries diagnostic text for every failure.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Message    string
}

// Success returns the success outcome.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// AuthFailure returns the outcome for a rejected session.
func AuthFailure(statusCode int, message string) Outcome {
	return Outcome{Kind: OutcomeAuthFailure, StatusCode: statusCode, Message: message}
}

// HTTPFailure returns the outcome for a non-auth HTTP error.
func HTTPFailure(statusCode int) Outcome {
	return Outcome{Kind: OutcomeHTTPFailure, StatusCode: statusCode, Message: fmt.Sprintf("HTTP %d", statusCode)}
}

// TransportFailure returns the outcome for a network or decoding error.
func TransportFailure(message string) Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Message: message}
}

// ErrSessionRejected matches any FetchError of kind OutcomeAuthFailure via errors.Is.
var ErrSessionRejected = errors.New("session rejected by upstream")

// FetchError describes a failed fetch for logging and error reporting.
type FetchError struct {
	RoomID     int64
	Year       int
	Month      int
	Kind       OutcomeKind
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	prefix := fmt.Sprintf("room %d %04d-%02d", e.RoomID, e.Year, e.Month)
	switch e.Kind {
	case OutcomeAuthFailure:
		return fmt.Sprintf("%s: session expired (HTTP %d)", prefix, e.StatusCode)
	case OutcomeHTTPFailure:
		return fmt.Sprintf("%s: upstream returned HTTP %d", prefix, e.StatusCode)
	default:
		return fmt.Sprintf("%s: request failed: %s", prefix, e.Message)
	}
}

// Is lets errors.Is(err, ErrSessionRejected) match auth failures.
func (e *FetchError) Is(target error) bool {
	return target == ErrSessionRejected && e.Kind == OutcomeAuthFailure
}

// retryable reports whether an outcome may be retried. 403 and other 4xx
// responses are never retried.
func retryable(o Outcome) bool {
	switch o.Kind {
	case OutcomeTransportFailure:
		return true
	case OutcomeHTTPFailure:
		return o.StatusCode >= 500
	default:
		return false
	}
}
