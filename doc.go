// Package authguard is a client-side authentication and session security
// layer for Go applications that talk to a token-based auth backend.
//
// It owns the full local session lifecycle: login attempt throttling before
// any network call, access/refresh token storage and coalesced refresh,
// per-session CSRF tokens, MFA step-up sessions with pluggable verifiers,
// password strength evaluation and a secured request path that attaches the
// required security headers and retries once after a token refresh.
//
// Build a client with the builder:
//
//	client, err := authguard.New().
//		WithBaseURL("https://api.example.com").
//		WithMFAVerifier("totp", verifier).
//		Build()
//
// State lives in pluggable stores. The default in-memory stores suit
// single-process hosts; attach a Redis client with WithRedis to share
// throttle windows and persisted tokens across instances.
package authguard
