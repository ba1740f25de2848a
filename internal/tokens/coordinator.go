package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/voyatra/authguard/storage"
)

const (
	accessTokenKey  = "accessToken"
	refreshTokenKey = "refreshToken"
)

var (
	// ErrNotAuthenticated means no refresh token is held, so nothing can be
	// refreshed.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMalformedToken means the access token failed the structural check.
	ErrMalformedToken = errors.New("malformed access token")
	// ErrRefreshRejected means the refresh endpoint declined the refresh
	// token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrTransport wraps network-level refresh failures.
	ErrTransport = errors.New("refresh transport error")
)

// Pair is the access/refresh token pair. ExpiresAt carries the access
// token's exp claim; zero means the token does not state one.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Doer is the injected HTTP transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds coordinator tuning parameters.
type Config struct {
	RefreshURL   string
	Timeout      time.Duration
	ExpiryLeeway time.Duration
}

// Hooks observe coordinator outcomes. Nil fields are skipped.
type Hooks struct {
	Success   func()
	Failure   func()
	Coalesced func()
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// Coordinator owns the token pair and coalesces concurrent refreshes into a
// single in-flight network call.
type Coordinator struct {
	mu       sync.Mutex
	pair     Pair
	inflight *refreshCall

	transport   Doer
	store       storage.Store
	now         func() time.Time
	fingerprint func() string
	config      Config
	hooks       Hooks
}

// NewCoordinator creates the coordinator. store is the durable token store;
// fingerprint supplies the session's device fingerprint for the refresh
// body.
func NewCoordinator(cfg Config, transport Doer, store storage.Store, now func() time.Time, fingerprint func() string, hooks Hooks) *Coordinator {
	if now == nil {
		now = time.Now
	}
	if fingerprint == nil {
		fingerprint = func() string { return "" }
	}
	return &Coordinator{
		transport:   transport,
		store:       store,
		now:         now,
		fingerprint: fingerprint,
		config:      cfg,
		hooks:       hooks,
	}
}

// SetPair installs a freshly issued pair (login or MFA confirmation) and
// persists it. A structurally malformed access token is refused.
func (c *Coordinator) SetPair(ctx context.Context, accessToken, refreshToken string) error {
	expiresAt, ok := Inspect(accessToken)
	if !ok {
		return ErrMalformedToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pair = Pair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}
	return c.persistLocked(ctx)
}

// Restore rehydrates the pair from the durable store. A persisted access
// token that fails the structural check clears the stored state instead of
// resurrecting it.
func (c *Coordinator) Restore(ctx context.Context) error {
	accessToken, err := c.store.Get(ctx, accessTokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	refreshToken, err := c.store.Get(ctx, refreshTokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	expiresAt, ok := Inspect(accessToken)
	if !ok {
		return c.Clear(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pair = Pair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}
	return nil
}

// AccessToken returns the current access token when one is held and not
// expired (with the configured leeway).
func (c *Coordinator) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pair.AccessToken == "" {
		return "", false
	}
	if c.expiredLocked() {
		return "", false
	}
	return c.pair.AccessToken, true
}

// Authenticated reports whether a refresh token is held.
func (c *Coordinator) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pair.RefreshToken != ""
}

// GetValidAccessToken returns a non-expired access token, refreshing
// proactively when the held one is expired or inside the leeway window.
func (c *Coordinator) GetValidAccessToken(ctx context.Context) (string, error) {
	if token, ok := c.AccessToken(); ok {
		return token, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return "", err
	}

	token, ok := c.AccessToken()
	if !ok {
		return "", ErrRefreshRejected
	}
	return token, nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one in-flight operation and all observe its result. A failed
// refresh clears the pair and its persisted copy; the caller is responsible
// for escalating to re-authentication.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		if h := c.hooks.Coalesced; h != nil {
			h()
		}
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	refreshToken := c.pair.RefreshToken
	if refreshToken == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	pair, err := c.exchange(ctx, refreshToken)

	c.mu.Lock()
	if err != nil {
		c.pair = Pair{}
		c.unpersistLocked(ctx)
		call.err = err
	} else {
		c.pair = pair
		// The pair is live in memory either way; persistence loss only
		// costs a re-login after restart.
		_ = c.persistLocked(ctx)
	}
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)

	if call.err != nil {
		if h := c.hooks.Failure; h != nil {
			h()
		}
	} else if h := c.hooks.Success; h != nil {
		h()
	}
	return call.err
}

// Clear drops the pair and its persisted copy (logout, refresh failure).
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pair = Pair{}
	return c.unpersistLocked(ctx)
}

func (c *Coordinator) expiredLocked() bool {
	if c.pair.ExpiresAt.IsZero() {
		return false
	}
	return !c.now().Before(c.pair.ExpiresAt.Add(-c.config.ExpiryLeeway))
}

func (c *Coordinator) persistLocked(ctx context.Context) error {
	if err := c.store.Set(ctx, accessTokenKey, c.pair.AccessToken); err != nil {
		return err
	}
	return c.store.Set(ctx, refreshTokenKey, c.pair.RefreshToken)
}

func (c *Coordinator) unpersistLocked(ctx context.Context) error {
	if err := c.store.Delete(ctx, accessTokenKey); err != nil {
		return err
	}
	return c.store.Delete(ctx, refreshTokenKey)
}

type refreshRequest struct {
	RefreshToken      string `json:"refreshToken"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type refreshResponse struct {
	Success bool `json:"success"`
	Data    struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

func (c *Coordinator) exchange(ctx context.Context, refreshToken string) (Pair, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(refreshRequest{
		RefreshToken:      refreshToken,
		DeviceFingerprint: c.fingerprint(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.transport.Do(req)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Pair{}, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	var decoded refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}
	if !decoded.Success || decoded.Data.AccessToken == "" || decoded.Data.RefreshToken == "" {
		return Pair{}, ErrRefreshRejected
	}

	expiresAt, ok := Inspect(decoded.Data.AccessToken)
	if !ok {
		return Pair{}, fmt.Errorf("%w: refreshed access token", ErrMalformedToken)
	}

	return Pair{
		AccessToken:  decoded.Data.AccessToken,
		RefreshToken: decoded.Data.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
