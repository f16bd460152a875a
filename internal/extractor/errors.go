package extractor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedResponse matches any *MalformedResponseError.
	ErrMalformedResponse = errors.New("malformed oracle response")
	// ErrOracleUnavailable matches any *OracleUnavailableError.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// MalformedResponseError reports oracle output that is not JSON or does not
// fit the extraction schema.
type MalformedResponseError struct {
	Chunk  int // zero-based chunk index, -1 when unknown
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed oracle response"
	if e.Chunk >= 0 {
		msg = fmt.Sprintf("%s for chunk %d", msg, e.Chunk)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureRateLimit FailureKind = "rate_limit"
	FailureNetwork   FailureKind = "network"
	FailureTimeout   FailureKind = "timeout"
	// FailureRejected covers 4xx answers other than auth and rate limiting.
	FailureRejected FailureKind = "rejected"
)

// OracleUnavailableError reports a failed call to the oracle.
type OracleUnavailableError struct {
	Kind       FailureKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *OracleUnavailableError) Error() string {
	msg := fmt.Sprintf("oracle unavailable (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OracleUnavailableError) Unwrap() error { return e.Err }

func (e *OracleUnavailableError) Is(target error) bool { return target == ErrOracleUnavailable }

// Retryable reports whether a later attempt may succeed without operator
// action.
func (e *OracleUnavailableError) Retryable() bool {
	switch e.Kind {
	case FailureRateLimit, FailureNetwork, FailureTimeout:
		return true
	default:
		return false
	}
}

func unavailable(kind FailureKind, status int, err error) *OracleUnavailableError {
	return &OracleUnavailableError{Kind: kind, StatusCode: status, Err: err}
}
