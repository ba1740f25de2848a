package authguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/voyatra/authguard/internal/audit"
	"github.com/voyatra/authguard/internal/metrics"
	"github.com/voyatra/authguard/password"
	"github.com/voyatra/authguard/storage"
)

type loginRequest struct {
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type mfaVerifyRequest struct {
	MFASessionID      string `json:"mfaSessionId"`
	Code              string `json:"code"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		AccessToken  string       `json:"accessToken"`
		RefreshToken string       `json:"refreshToken"`
		MFARequired  bool         `json:"mfaRequired"`
		MFAType      string       `json:"mfaType"`
		User         *UserProfile `json:"user"`
	} `json:"data"`
}

// Login authenticates with the server. Attempts are throttled locally
// before any network call; a denied attempt returns a [*RateLimitError]
// without touching the network. When the account requires MFA the returned
// result carries a challenge to complete via ConfirmMFA.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}

	gate := c.limiter.Check(ctx, creds.Identifier)
	if !gate.Allowed {
		c.metrics.Inc(metrics.MetricLoginRateLimited)
		c.emit(ctx, audit.Event{
			EventType:  "login_rate_limited",
			Identifier: creds.Identifier,
		})
		return nil, &RateLimitError{
			Identifier: creds.Identifier,
			ResetAt:    gate.ResetAt,
			RetryAfter: gate.ResetAt.Sub(c.clock()),
		}
	}

	body, err := json.Marshal(loginRequest{
		Identifier:        creds.Identifier,
		Password:          creds.Password,
		DeviceFingerprint: c.fingerprint,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := c.postAuth(ctx, c.config.Transport.LoginPath, body)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.metrics.Inc(metrics.MetricLoginFailure)
			c.emit(ctx, audit.Event{
				EventType:  "login_failure",
				Identifier: creds.Identifier,
			})
		}
		return nil, err
	}

	if parsed.Data.MFARequired {
		method := parsed.Data.MFAType
		if method == "" {
			method = "totp"
		}
		userID := ""
		if parsed.Data.User != nil {
			userID = parsed.Data.User.ID
		}

		sessionID, err := c.mfa.Start(userID, creds.Identifier, method)
		if err != nil {
			return nil, err
		}

		c.metrics.Inc(metrics.MetricMFARequired)
		c.emit(ctx, audit.Event{
			EventType:  "mfa_required",
			Identifier: creds.Identifier,
			UserID:     userID,
			MFASession: sessionID,
			Success:    true,
		})

		return &LoginResult{
			MFARequired: true,
			Challenge: &MFAChallenge{
				SessionID: sessionID,
				Method:    method,
				ExpiresAt: c.clock().Add(c.config.MFA.SessionTTL),
			},
			User: parsed.Data.User,
		}, nil
	}

	if err := c.finalizeLogin(ctx, creds.Identifier, parsed); err != nil {
		return nil, err
	}

	return &LoginResult{User: parsed.Data.User}, nil
}

// ConfirmMFA verifies a code against the pending MFA session and, on
// success, exchanges it with the server for a token pair. Expired or
// unknown sessions fail closed.
func (c *Client) ConfirmMFA(ctx context.Context, sessionID, code string) (*LoginResult, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}

	validation := c.mfa.Validate(sessionID)
	if !validation.Valid {
		c.metrics.Inc(metrics.MetricMFAExpired)
		c.emit(ctx, audit.Event{
			EventType:  "mfa_session_invalid",
			MFASession: sessionID,
		})
		return nil, ErrMFASessionInvalid
	}

	if !c.mfa.Verify(sessionID, code) {
		c.metrics.Inc(metrics.MetricMFAFailure)
		c.emit(ctx, audit.Event{
			EventType:  "mfa_failure",
			Identifier: validation.Identifier,
			UserID:     validation.UserID,
			MFASession: sessionID,
		})
		return nil, ErrMFAInvalidCode
	}

	body, err := json.Marshal(mfaVerifyRequest{
		MFASessionID:      sessionID,
		Code:              code,
		DeviceFingerprint: c.fingerprint,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := c.postAuth(ctx, c.config.Transport.MFAVerifyPath, body)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.metrics.Inc(metrics.MetricMFAFailure)
			return nil, ErrMFAInvalidCode
		}
		return nil, err
	}

	c.mfa.Complete(sessionID)

	// Finalize under the login identifier, not the userID, so the attempt
	// window that throttled this identifier actually resets.
	if err := c.finalizeLogin(ctx, validation.Identifier, parsed); err != nil {
		return nil, err
	}

	c.metrics.Inc(metrics.MetricMFASuccess)
	c.emit(ctx, audit.Event{
		EventType:  "mfa_success",
		Identifier: validation.Identifier,
		UserID:     validation.UserID,
		MFASession: sessionID,
		Success:    true,
	})

	return &LoginResult{User: parsed.Data.User}, nil
}

// postAuth sends an unauthenticated auth-flow request and decodes the
// common response envelope. 4xx statuses map to ErrInvalidCredentials.
func (c *Client) postAuth(ctx context.Context, path string, body []byte) (*authResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Fingerprint", c.fingerprint)
	req.Header.Set("X-Timestamp", strconv.FormatInt(c.clock().UnixMilli(), 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if !parsed.Success {
		return nil, ErrInvalidCredentials
	}

	return &parsed, nil
}

// finalizeLogin installs a fresh authenticated session: the throttle window
// resets, a new CSRF token is issued and tokens plus profile persist.
func (c *Client) finalizeLogin(ctx context.Context, identifier string, parsed *authResponse) error {
	if parsed.Data.AccessToken == "" || parsed.Data.RefreshToken == "" {
		return fmt.Errorf("%w: token pair missing from response", ErrRequestFailed)
	}

	if err := c.tokens.SetPair(ctx, parsed.Data.AccessToken, parsed.Data.RefreshToken); err != nil {
		return err
	}

	c.limiter.Reset(ctx, identifier)

	if _, err := c.csrf.Issue(ctx); err != nil {
		return err
	}
	c.metrics.Inc(metrics.MetricCSRFIssued)

	if parsed.Data.User != nil {
		c.profileMu.Lock()
		c.profile = parsed.Data.User
		c.profileMu.Unlock()

		if encoded, err := json.Marshal(parsed.Data.User); err == nil {
			_ = c.tokenStore.Set(ctx, profileKey, string(encoded))
		}
	}

	c.metrics.Inc(metrics.MetricLoginSuccess)
	c.emit(ctx, audit.Event{
		EventType:  "login_success",
		Identifier: identifier,
		Success:    true,
	})

	return nil
}

// Logout tells the server to revoke the session, then clears all local
// state. The network call is best effort; local state always clears.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	if token, ok := c.tokens.AccessToken(); ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+c.config.Transport.LogoutPath, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("X-Device-Fingerprint", c.fingerprint)
			if csrfToken, ok := c.csrf.Current(ctx); ok {
				req.Header.Set("X-CSRF-Token", csrfToken)
			}
			if resp, err := c.http.Do(req); err == nil {
				resp.Body.Close()
			} else {
				c.logger.Debug("logout request failed", zap.Error(err))
			}
		}
	}

	_ = c.tokens.Clear(ctx)
	_ = c.csrf.Clear(ctx)
	_ = c.tokenStore.Delete(ctx, profileKey)

	c.profileMu.Lock()
	c.profile = nil
	c.profileMu.Unlock()

	c.metrics.Inc(metrics.MetricLogout)
	c.emit(ctx, audit.Event{
		EventType: "logout",
		Success:   true,
	})

	return nil
}

// Restore rebuilds the session from persisted tokens, as after a process
// restart. Malformed persisted tokens clear silently.
func (c *Client) Restore(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	if err := c.tokens.Restore(ctx); err != nil {
		return err
	}
	if !c.tokens.Authenticated() {
		return nil
	}

	if raw, err := c.tokenStore.Get(ctx, profileKey); err == nil {
		var profile UserProfile
		if json.Unmarshal([]byte(raw), &profile) == nil {
			c.profileMu.Lock()
			c.profile = &profile
			c.profileMu.Unlock()
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	// CSRF tokens are session scoped and never persist across restarts.
	if _, err := c.csrf.Issue(ctx); err != nil {
		return err
	}
	c.metrics.Inc(metrics.MetricCSRFIssued)
	c.metrics.Inc(metrics.MetricSessionRestored)

	return nil
}

// CurrentUser returns the locally cached profile.
func (c *Client) CurrentUser() (*UserProfile, bool) {
	if c == nil {
		return nil, false
	}
	c.profileMu.RLock()
	defer c.profileMu.RUnlock()
	if c.profile == nil {
		return nil, false
	}
	copied := *c.profile
	return &copied, true
}

// PasswordStrength evaluates a candidate password.
func (c *Client) PasswordStrength(candidate string) StrengthResult {
	return password.Evaluate(candidate)
}
