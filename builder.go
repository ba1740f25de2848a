package authguard

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voyatra/authguard/internal/audit"
	"github.com/voyatra/authguard/internal/metrics"
	"github.com/voyatra/authguard/internal/rate"
	"github.com/voyatra/authguard/internal/stores"
	"github.com/voyatra/authguard/internal/tokens"
	"github.com/voyatra/authguard/storage"
)

// Builder assembles a [Client]. Configure it with the With* methods and
// call Build once.
type Builder struct {
	config Config

	httpClient   *http.Client
	redis        redis.UniversalClient
	tokenStore   storage.Store
	sessionStore storage.Store

	verifiers map[string]CodeVerifier
	signals   FingerprintSignals

	clock         func() time.Time
	random        io.Reader
	auditSink     AuditSink
	onAuthFailure func()
	logger        *zap.Logger

	built bool
}

func New() *Builder {
	return &Builder{
		config:    defaultConfig(),
		verifiers: make(map[string]CodeVerifier),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithRedis backs the rate limiter and token storage with Redis so state
// survives process restarts and is shared across instances.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTokenStore overrides durable storage for tokens and the profile.
func (b *Builder) WithTokenStore(store storage.Store) *Builder {
	b.tokenStore = store
	return b
}

// WithSessionStore overrides session-scoped storage for CSRF tokens and the
// device fingerprint. Session storage must not outlive the session.
func (b *Builder) WithSessionStore(store storage.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithMFAVerifier registers a verifier for an MFA method such as "totp",
// "sms" or "email".
func (b *Builder) WithMFAVerifier(method string, verifier CodeVerifier) *Builder {
	b.verifiers[method] = verifier
	return b
}

// WithFingerprintSignals supplies environment attributes hashed into the
// device fingerprint.
func (b *Builder) WithFingerprintSignals(signals FingerprintSignals) *Builder {
	b.signals = signals
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithRandom overrides the entropy source. Intended for tests.
func (b *Builder) WithRandom(random io.Reader) *Builder {
	b.random = random
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithOnAuthFailure registers a callback invoked after local auth state is
// cleared because the session could not be recovered. Hosts typically
// navigate to their login screen here.
func (b *Builder) WithOnAuthFailure(fn func()) *Builder {
	b.onAuthFailure = fn
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) WithAuditEnabled(enabled bool) *Builder {
	b.config.Audit.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	random := b.random
	if random == nil {
		random = rand.Reader
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Transport.Timeout}
	}

	tokenStore := b.tokenStore
	if tokenStore == nil {
		if b.redis != nil {
			tokenStore = storage.NewRedisStore(b.redis, cfg.StorePrefix, 0)
		} else {
			tokenStore = storage.NewMemoryStore()
		}
	}
	sessionStore := b.sessionStore
	if sessionStore == nil {
		sessionStore = storage.NewMemoryStore()
	}

	var limiter rate.Limiter
	if b.redis != nil {
		limiter = rate.NewRedisLimiter(b.redis, cfg.RateLimit.RedisPrefix, rate.Config{
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
		}, clock)
	} else {
		limiter = rate.NewMemoryLimiter(rate.Config{
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
		}, clock)
	}

	mfa, err := stores.NewMFAManager(cfg.MFA.SessionTTL, cfg.MFA.CompletionGrace, clock, random)
	if err != nil {
		return nil, err
	}
	if len(b.verifiers) == 0 {
		// Demo verifier only; real hosts register their own.
		b.WithMFAVerifier("totp", SyntacticVerifier{})
		b.WithMFAVerifier("sms", SyntacticVerifier{})
		b.WithMFAVerifier("email", SyntacticVerifier{})
	}
	mfaMethods := make([]string, 0, len(b.verifiers))
	for method, verifier := range b.verifiers {
		mfa.RegisterVerifier(method, verifier)
		mfaMethods = append(mfaMethods, method)
	}
	sort.Strings(mfaMethods)

	fingerprint, err := loadOrCreateFingerprint(context.Background(), sessionStore, b.signals)
	if err != nil {
		return nil, err
	}

	client := &Client{
		config:        cfg,
		http:          httpClient,
		clock:         clock,
		logger:        logger,
		limiter:       limiter,
		csrf:          stores.NewCSRFStore(sessionStore, random),
		mfa:           mfa,
		tokenStore:    tokenStore,
		sessionStore:  sessionStore,
		fingerprint:   fingerprint,
		mfaMethods:    mfaMethods,
		redisBacked:   b.redis != nil,
		onAuthFailure: b.onAuthFailure,
		metrics:       metrics.New(cfg.Metrics),
		audit:         audit.NewDispatcher(cfg.Audit, b.auditSink),
	}

	client.tokens = tokens.NewCoordinator(tokens.Config{
		RefreshURL:   cfg.BaseURL + cfg.Transport.RefreshPath,
		Timeout:      cfg.Refresh.Timeout,
		ExpiryLeeway: cfg.Refresh.ExpiryLeeway,
	}, httpClient, tokenStore, clock, func() string { return client.fingerprint }, tokens.Hooks{
		Success: func() {
			client.metrics.Inc(metrics.MetricRefreshSuccess)
		},
		Failure: func() {
			client.metrics.Inc(metrics.MetricRefreshFailure)
		},
		Coalesced: func() {
			client.metrics.Inc(metrics.MetricRefreshCoalesced)
		},
	})

	b.built = true
	return client, nil
}
