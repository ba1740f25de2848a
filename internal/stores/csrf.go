package stores

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/voyatra/authguard/storage"
)

const (
	csrfTokenBytes = 32
	csrfStorageKey = "csrfToken"
)

// ErrCSRFSource is returned when the random source cannot produce a token.
var ErrCSRFSource = errors.New("csrf token source failed")

// CSRFStore issues and validates the per-session anti-forgery token. One
// value is active at a time; Issue overwrites the previous one. The value
// lives in the session-scoped store, so it ends with the browsing session
// rather than with the long-lived refresh token.
type CSRFStore struct {
	mu      sync.Mutex
	session storage.Store
	random  io.Reader
}

// NewCSRFStore creates a CSRF store over the session-scoped storage port.
func NewCSRFStore(session storage.Store, random io.Reader) *CSRFStore {
	return &CSRFStore{
		session: session,
		random:  random,
	}
}

// Issue generates a fresh 256-bit token, stores it as the session's sole
// current value, and returns its hex encoding.
func (s *CSRFStore) Issue(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make([]byte, csrfTokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCSRFSource, err)
	}

	token := hex.EncodeToString(raw)
	if err := s.session.Set(ctx, csrfStorageKey, token); err != nil {
		return "", err
	}
	return token, nil
}

// Current returns the active token, if any.
func (s *CSRFStore) Current(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.session.Get(ctx, csrfStorageKey)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Validate compares the candidate against the active token in constant
// time. A session without an active token rejects everything.
func (s *CSRFStore) Validate(ctx context.Context, candidate string) bool {
	current, ok := s.Current(ctx)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(candidate)) == 1
}

// Clear removes the active token. Called when the session ends.
func (s *CSRFStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session.Delete(ctx, csrfStorageKey)
}
