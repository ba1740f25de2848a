package authguard

import (
	"errors"
	"strings"
	"time"

	"github.com/voyatra/authguard/internal/audit"
	"github.com/voyatra/authguard/internal/metrics"
)

// RateLimitConfig controls the local login attempt limiter.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
	// RedisPrefix namespaces limiter keys when a Redis client is attached.
	RedisPrefix string
}

// MFAConfig controls the local MFA session lifecycle.
type MFAConfig struct {
	SessionTTL time.Duration
	// CompletionGrace keeps completed sessions resolvable for duplicate
	// confirmations before they are reaped.
	CompletionGrace time.Duration
}

// RefreshConfig controls the token refresh coordinator.
type RefreshConfig struct {
	// ExpiryLeeway treats tokens expiring within the window as already
	// expired so refresh happens before the server would reject them.
	ExpiryLeeway time.Duration
	Timeout      time.Duration
}

// TransportConfig controls the secured HTTP client.
type TransportConfig struct {
	Timeout       time.Duration
	LoginPath     string
	RefreshPath   string
	LogoutPath    string
	MFAVerifyPath string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig = audit.Config

// MetricsConfig controls metric recording.
type MetricsConfig = metrics.Config

// Config is the full client configuration. Zero values are filled in from
// defaultConfig by the builder.
type Config struct {
	BaseURL   string
	RateLimit RateLimitConfig
	MFA       MFAConfig
	Refresh   RefreshConfig
	Transport TransportConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// StorePrefix namespaces durable storage keys.
	StorePrefix string
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			RedisPrefix: "agrl",
		},
		MFA: MFAConfig{
			SessionTTL:      5 * time.Minute,
			CompletionGrace: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			ExpiryLeeway: 30 * time.Second,
			Timeout:      10 * time.Second,
		},
		Transport: TransportConfig{
			Timeout:       10 * time.Second,
			LoginPath:     "/api/v1/auth/login",
			RefreshPath:   "/api/v1/auth/refresh",
			LogoutPath:    "/api/v1/auth/logout",
			MFAVerifyPath: "/api/v1/auth/mfa/verify",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		StorePrefix: "ag",
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate rejects configurations the client cannot operate with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL must be set")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("BaseURL must be an http(s) URL")
	}

	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("RateLimit MaxAttempts must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}

	if c.MFA.SessionTTL <= 0 {
		return errors.New("MFA SessionTTL must be > 0")
	}
	if c.MFA.CompletionGrace < 0 {
		return errors.New("MFA CompletionGrace must be >= 0")
	}

	if c.Refresh.ExpiryLeeway < 0 {
		return errors.New("Refresh ExpiryLeeway must be >= 0")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	if c.Transport.Timeout <= 0 {
		return errors.New("Transport Timeout must be > 0")
	}
	for _, p := range []string{
		c.Transport.LoginPath,
		c.Transport.RefreshPath,
		c.Transport.LogoutPath,
		c.Transport.MFAVerifyPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Transport paths must start with /")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
