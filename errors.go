package authguard

import (
	"errors"
	"fmt"
	"time"

	"github.com/voyatra/authguard/internal/tokens"
)

var (
	// ErrClientNotReady is returned when methods are called on an unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidCredentials is returned when the server rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the local limiter denies a login attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrNotAuthenticated is returned when no usable session exists.
	ErrNotAuthenticated = tokens.ErrNotAuthenticated
	// ErrMalformedToken is returned when a token fails structural inspection.
	ErrMalformedToken = tokens.ErrMalformedToken
	// ErrRefreshFailed is returned when the server rejects a refresh exchange.
	ErrRefreshFailed = tokens.ErrRefreshRejected
	// ErrRefreshTransport is returned when the refresh exchange never reached the server.
	ErrRefreshTransport = tokens.ErrTransport
	// ErrMFASessionInvalid is returned for unknown or expired MFA sessions.
	ErrMFASessionInvalid = errors.New("mfa session invalid or expired")
	// ErrMFAInvalidCode is returned when MFA code verification fails.
	ErrMFAInvalidCode = errors.New("invalid mfa code")
	// ErrMFAMethodUnknown is returned when no verifier is registered for a method.
	ErrMFAMethodUnknown = errors.New("unknown mfa method")
	// ErrCSRFMissing is returned when a state-changing request has no CSRF token.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrRequestFailed is returned when a secured request fails after the retry budget.
	ErrRequestFailed = errors.New("request failed")
)

// RateLimitError carries the window state of a denied login attempt.
type RateLimitError struct {
	Identifier string
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrLoginRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrLoginRateLimited
}
