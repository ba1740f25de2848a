package authguard

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/voyatra/authguard/internal/audit"
	"github.com/voyatra/authguard/internal/metrics"
	"github.com/voyatra/authguard/internal/stores"
	"github.com/voyatra/authguard/password"
)

// TokenPair is an access/refresh token pair as returned by the auth server.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Credentials is a login request.
type Credentials struct {
	Identifier string
	Password   string
}

// UserProfile is the subset of account data the client keeps locally.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
}

// MFAChallenge describes a pending MFA step-up started by Login.
type MFAChallenge struct {
	SessionID string
	Method    string
	ExpiresAt time.Time
}

// LoginResult is the outcome of a Login call. When MFARequired is set the
// caller must complete the challenge via ConfirmMFA before tokens exist.
type LoginResult struct {
	MFARequired bool
	Challenge   *MFAChallenge
	User        *UserProfile
}

// CodeVerifier checks an MFA submission for a user.
type CodeVerifier = stores.CodeVerifier

// StrengthResult reports password evaluation output.
type StrengthResult = password.Result

// AuditEvent is a security event emitted by the client.
type AuditEvent = audit.Event

// AuditSink receives audit events.
type AuditSink = audit.Sink

// MetricID identifies a client metric.
type MetricID = metrics.MetricID

// MetricsSnapshot is a point-in-time copy of all client metrics.
type MetricsSnapshot = metrics.Snapshot

// Re-exported metric identifiers.
const (
	MetricLoginSuccess     = metrics.MetricLoginSuccess
	MetricLoginFailure     = metrics.MetricLoginFailure
	MetricLoginRateLimited = metrics.MetricLoginRateLimited
	MetricMFARequired      = metrics.MetricMFARequired
	MetricMFASuccess       = metrics.MetricMFASuccess
	MetricMFAFailure       = metrics.MetricMFAFailure
	MetricMFAExpired       = metrics.MetricMFAExpired
	MetricRefreshSuccess   = metrics.MetricRefreshSuccess
	MetricRefreshFailure   = metrics.MetricRefreshFailure
	MetricRefreshCoalesced = metrics.MetricRefreshCoalesced
	MetricRequestRetried   = metrics.MetricRequestRetried
	MetricAuthFailure      = metrics.MetricAuthFailure
	MetricCSRFIssued       = metrics.MetricCSRFIssued
	MetricCSRFRejected     = metrics.MetricCSRFRejected
	MetricLogout           = metrics.MetricLogout
	MetricSessionRestored  = metrics.MetricSessionRestored
	MetricRequestLatency   = metrics.MetricRequestLatency
)

// NewChannelAuditSink returns a sink backed by a buffered channel.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewZapAuditSink returns a sink that logs events through a zap logger.
func NewZapAuditSink(logger *zap.Logger) *audit.ZapSink {
	return audit.NewZapSink(logger)
}

// NewJSONAuditSink returns a sink that writes one JSON object per line.
func NewJSONAuditSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
