package provider

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure.
type Kind string

const (
	// KindConfig is a permanent configuration problem such as a missing key.
	KindConfig Kind = "config"
	// KindRateLimited is upstream throttling (HTTP 429). Retryable.
	KindRateLimited Kind = "rate_limited"
	// KindTransient covers timeouts, network failures and 5xx. Retryable.
	KindTransient Kind = "transient"
	// KindMalformed is an unparseable upstream response.
	KindMalformed Kind = "malformed"
	// KindUpstream is any other non-2xx answer or an explicit upstream error.
	KindUpstream Kind = "upstream"
)

// Error is the typed failure returned by Fetch and Search.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Cause      error

	// RetryAfter is the wait the upstream asked for, zero when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// RetryAfterHint exposes the upstream's requested wait to the retry loop.
func (e *Error) RetryAfterHint() (time.Duration, bool) {
	return e.RetryAfter, e.RetryAfter > 0
}

// Retryable reports whether the failure is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// KindOf returns the Kind of err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}

// ConfigError reports a missing or placeholder credential.
func ConfigError(providerID, msg string) *Error {
	return &Error{Kind: KindConfig, Provider: providerID, Message: msg}
}
