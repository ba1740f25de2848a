package authguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyatra/authguard/internal/audit"
	"github.com/voyatra/authguard/internal/metrics"
	"github.com/voyatra/authguard/internal/rate"
	"github.com/voyatra/authguard/internal/security"
	"github.com/voyatra/authguard/internal/stores"
	"github.com/voyatra/authguard/internal/tokens"
	"github.com/voyatra/authguard/storage"
)

const profileKey = "userProfile"

// Client is the client-side authentication layer. It owns token lifecycle,
// login throttling, CSRF state, MFA sessions and the secured request path.
// All methods are safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
	clock  func() time.Time
	logger *zap.Logger

	limiter rate.Limiter
	csrf    *stores.CSRFStore
	mfa     *stores.MFAManager
	tokens  *tokens.Coordinator

	tokenStore   storage.Store
	sessionStore storage.Store
	fingerprint  string
	mfaMethods   []string
	redisBacked  bool

	onAuthFailure func()
	metrics       *metrics.Metrics
	audit         *audit.Dispatcher

	profileMu sync.RWMutex
	profile   *UserProfile
}

// Request describes one secured API call. Bodies are held as bytes so a
// request can be replayed after a token refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Do executes a secured request. It attaches the bearer token, CSRF token,
// device fingerprint and timestamp headers, and on a 401 response refreshes
// the token pair once and replays the request. A second 401, or a failed
// refresh, clears local auth state.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}

	start := c.clock()

	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			c.escalateAuthFailure(ctx, err)
		}
		return nil, err
	}

	resp, err := c.send(ctx, req, token, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		c.metrics.Observe(metrics.MetricRequestLatency, c.clock().Sub(start))
		return resp, nil
	}
	resp.Body.Close()

	if err := c.tokens.Refresh(ctx); err != nil {
		c.escalateAuthFailure(ctx, err)
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	token, ok := c.tokens.AccessToken()
	if !ok {
		c.escalateAuthFailure(ctx, ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	c.metrics.Inc(metrics.MetricRequestRetried)
	resp, err = c.send(ctx, req, token, 1)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.escalateAuthFailure(ctx, ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	c.metrics.Observe(metrics.MetricRequestLatency, c.clock().Sub(start))
	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request, token string, attempt int) (*http.Response, error) {
	target := c.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Device-Fingerprint", c.fingerprint)
	httpReq.Header.Set("X-Timestamp", strconv.FormatInt(c.clock().UnixMilli(), 10))
	if attempt > 0 {
		httpReq.Header.Set("X-Retry-Attempt", strconv.Itoa(attempt))
	}

	if isStateChanging(req.Method) {
		csrfToken, ok := c.csrf.Current(ctx)
		if !ok {
			return nil, ErrCSRFMissing
		}
		httpReq.Header.Set("X-CSRF-Token", csrfToken)
	}

	return c.http.Do(httpReq)
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// escalateAuthFailure clears every piece of local auth state and notifies
// the host. Called when the session is unrecoverable.
func (c *Client) escalateAuthFailure(ctx context.Context, cause error) {
	_ = c.tokens.Clear(ctx)
	_ = c.csrf.Clear(ctx)
	_ = c.tokenStore.Delete(ctx, profileKey)

	c.profileMu.Lock()
	c.profile = nil
	c.profileMu.Unlock()

	c.metrics.Inc(metrics.MetricAuthFailure)
	c.emit(ctx, audit.Event{
		EventType: "auth_failure",
		Error:     cause.Error(),
	})
	c.logger.Warn("auth state cleared", zap.Error(cause))

	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}

func (c *Client) emit(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.clock().UTC()
	}
	event.Fingerprint = c.fingerprint
	c.audit.Emit(ctx, event)
}

// Authenticated reports whether a token pair is held locally.
func (c *Client) Authenticated() bool {
	return c != nil && c.tokens.Authenticated()
}

// CSRFToken returns the current session CSRF token.
func (c *Client) CSRFToken(ctx context.Context) (string, bool) {
	return c.csrf.Current(ctx)
}

// ValidateCSRF checks a candidate against the stored token in constant time.
func (c *Client) ValidateCSRF(ctx context.Context, candidate string) bool {
	ok := c.csrf.Validate(ctx, candidate)
	if !ok {
		c.metrics.Inc(metrics.MetricCSRFRejected)
	}
	return ok
}

// Fingerprint returns the session-stable device fingerprint.
func (c *Client) Fingerprint() string {
	return c.fingerprint
}

// SecurityReport summarizes the protections this client enforces.
func (c *Client) SecurityReport() security.Report {
	return security.BuildReport(security.ReportInput{
		MaxLoginAttempts: c.config.RateLimit.MaxAttempts,
		LoginWindow:      c.config.RateLimit.Window,
		MFAMethods:       c.mfaMethods,
		MFASessionTTL:    c.config.MFA.SessionTTL,
		ExpiryLeeway:     c.config.Refresh.ExpiryLeeway,
		RedisBacked:      c.redisBacked,
		AuditEnabled:     c.config.Audit.Enabled,
		MetricsEnabled:   c.config.Metrics.Enabled,
	})
}

// MetricsSnapshot returns a copy of all client metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops the audit dispatcher. The client must not be used after Close.
func (c *Client) Close() {
	c.audit.Close()
}
