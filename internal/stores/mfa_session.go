package stores

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

const mfaSessionRandomBytes = 16

// ErrMFAIDSource is returned when a session id cannot be generated.
var ErrMFAIDSource = errors.New("mfa session id source failed")

// CodeVerifier checks a second-factor submission for a user. Implementations
// must be safe for concurrent use and must never panic on malformed input.
type CodeVerifier interface {
	Verify(userID, submission string) bool
}

// Validation is the result of an MFA session lookup.
type Validation struct {
	Valid      bool
	UserID     string
	Identifier string
}

type mfaSession struct {
	userID      string
	identifier  string
	method      string
	createdAt   time.Time
	completed   bool
	completedAt time.Time
}

// MFAManager tracks pending second-factor challenges by session id.
//
// Sessions move PENDING -> COMPLETED -> reaped. A session older than the
// TTL is never valid, completed or not; completed sessions linger for a
// short grace period so a near-simultaneous duplicate completion call is
// tolerated, then get garbage-collected. All reaping is driven by the
// injected clock (lazily on lookup plus a sweep on each Start), never by
// timers.
type MFAManager struct {
	mu        sync.Mutex
	sessions  map[string]*mfaSession
	verifiers map[string]CodeVerifier
	ttl       time.Duration
	grace     time.Duration
	now       func() time.Time
	random    io.Reader
	node      *snowflake.Node
}

// NewMFAManager creates a manager with the given session TTL and completion
// grace period. A nil random source falls back to crypto/rand.
func NewMFAManager(ttl, grace time.Duration, now func() time.Time, random io.Reader) (*MFAManager, error) {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = rand.Reader
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMFAIDSource, err)
	}

	return &MFAManager{
		sessions:  make(map[string]*mfaSession),
		verifiers: make(map[string]CodeVerifier),
		ttl:       ttl,
		grace:     grace,
		now:       now,
		random:    random,
		node:      node,
	}, nil
}

// RegisterVerifier binds a second-factor method name ("totp", "sms",
// "email", "backup") to its checker. Verify fails closed for methods with
// no registered checker.
func (m *MFAManager) RegisterVerifier(method string, verifier CodeVerifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifiers[method] = verifier
}

// Start opens a pending session for the user's second factor and returns
// its id. The login identifier rides along so completion can settle
// per-identifier state such as the attempt throttle. The id combines a
// snowflake (time plus sequence component) with 16 bytes from the random
// source, so ids are unguessable and never sequential.
func (m *MFAManager) Start(userID, identifier, method string) (string, error) {
	id, err := m.newSessionID()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	m.sessions[id] = &mfaSession{
		userID:     userID,
		identifier: identifier,
		method:     method,
		createdAt:  m.now(),
	}
	return id, nil
}

// Validate reports whether the session is still live. Absent and expired
// sessions are invalid; expired records are evicted as a side effect.
func (m *MFAManager) Validate(sessionID string) Validation {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.liveLocked(sessionID)
	if !ok {
		return Validation{}
	}
	return Validation{Valid: true, UserID: session.userID, Identifier: session.identifier}
}

// Verify checks a second-factor submission against the session's method
// checker. It validates the session first and fails closed when the session
// is absent, expired, or its method has no registered checker.
func (m *MFAManager) Verify(sessionID, submission string) bool {
	m.mu.Lock()
	session, ok := m.liveLocked(sessionID)
	if !ok {
		m.mu.Unlock()
		return false
	}
	verifier := m.verifiers[session.method]
	userID := session.userID
	m.mu.Unlock()

	if verifier == nil {
		return false
	}
	// The checker may block (network second factors); never hold the lock
	// across it.
	return verifier.Verify(userID, submission)
}

// Complete marks the session's second factor as verified. The record stays
// for the grace period so a duplicate completion call is idempotent, then
// the sweep reaps it. Completing an absent or expired session returns false.
func (m *MFAManager) Complete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.liveLocked(sessionID)
	if !ok {
		return false
	}
	if !session.completed {
		session.completed = true
		session.completedAt = m.now()
	}
	return true
}

// Len reports the number of tracked sessions, after reaping.
func (m *MFAManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	return len(m.sessions)
}

// liveLocked returns the session when it is neither expired nor past its
// completion grace, evicting it otherwise. Callers hold m.mu.
func (m *MFAManager) liveLocked(sessionID string) (*mfaSession, bool) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if m.deadLocked(session) {
		delete(m.sessions, sessionID)
		return nil, false
	}
	return session, true
}

func (m *MFAManager) deadLocked(session *mfaSession) bool {
	now := m.now()
	if now.Sub(session.createdAt) > m.ttl {
		return true
	}
	return session.completed && now.Sub(session.completedAt) > m.grace
}

func (m *MFAManager) sweepLocked() {
	for id, session := range m.sessions {
		if m.deadLocked(session) {
			delete(m.sessions, id)
		}
	}
}

func (m *MFAManager) newSessionID() (string, error) {
	raw := make([]byte, 8+mfaSessionRandomBytes)
	binary.BigEndian.PutUint64(raw[:8], uint64(m.node.Generate().Int64()))
	if _, err := io.ReadFull(m.random, raw[8:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMFAIDSource, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
