package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voyatra/authguard/storage"
)

type refreshBackend struct {
	t         *testing.T
	calls     atomic.Int64
	entered   chan struct{}
	release   chan struct{}
	rejectAll bool

	mu     sync.Mutex
	issued string
}

// newRefreshBackend serves the refresh endpoint. When gated, handlers block
// until open() so tests can pile up concurrent callers behind one in-flight
// refresh.
func newRefreshBackend(t *testing.T, gated bool) (*refreshBackend, *httptest.Server) {
	t.Helper()

	b := &refreshBackend{
		t:       t,
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
	if !gated {
		close(b.release)
	}

	server := httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(server.Close)
	return b, server
}

func (b *refreshBackend) open() {
	close(b.release)
}

func (b *refreshBackend) lastIssued() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issued
}

func (b *refreshBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if b.rejectAll {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	access := testToken(b.t, time.Now().Add(time.Hour))
	b.mu.Lock()
	b.issued = access
	b.mu.Unlock()

	var resp refreshResponse
	resp.Success = true
	resp.Data.AccessToken = access
	resp.Data.RefreshToken = "rotated-" + req.RefreshToken
	_ = json.NewEncoder(w).Encode(resp)
}

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	return token
}

func newCoordinator(t *testing.T, refreshURL string, hooks Hooks) (*Coordinator, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	coordinator := NewCoordinator(Config{
		RefreshURL:   refreshURL,
		Timeout:      10 * time.Second,
		ExpiryLeeway: 30 * time.Second,
	}, http.DefaultClient, store, time.Now, func() string { return "fp-test" }, hooks)
	return coordinator, store
}

func TestSetPairRejectsMalformedAccessToken(t *testing.T) {
	coordinator, _ := newCoordinator(t, "http://unused.invalid", Hooks{})

	err := coordinator.SetPair(context.Background(), "not-a-jwt", "r1")
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestSetPairPersistsAndExposesToken(t *testing.T) {
	coordinator, store := newCoordinator(t, "http://unused.invalid", Hooks{})
	ctx := context.Background()

	access := testToken(t, time.Now().Add(time.Hour))
	if err := coordinator.SetPair(ctx, access, "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	token, ok := coordinator.AccessToken()
	if !ok || token != access {
		t.Fatalf("expected access token to be held, got ok=%v", ok)
	}

	persisted, err := store.Get(ctx, "accessToken")
	if err != nil || persisted != access {
		t.Fatalf("expected persisted access token, got %q err=%v", persisted, err)
	}
}

func TestAccessTokenHidesExpiredToken(t *testing.T) {
	coordinator, _ := newCoordinator(t, "http://unused.invalid", Hooks{})

	expired := testToken(t, time.Now().Add(-time.Minute))
	if err := coordinator.SetPair(context.Background(), expired, "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	if _, ok := coordinator.AccessToken(); ok {
		t.Fatal("expected expired token to be hidden")
	}
}

func TestAccessTokenLeewayTreatsNearExpiryAsExpired(t *testing.T) {
	coordinator, _ := newCoordinator(t, "http://unused.invalid", Hooks{})

	nearExpiry := testToken(t, time.Now().Add(10*time.Second))
	if err := coordinator.SetPair(context.Background(), nearExpiry, "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	if _, ok := coordinator.AccessToken(); ok {
		t.Fatal("expected token inside the leeway window to be treated as expired")
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	backend, server := newRefreshBackend(t, false)
	coordinator, store := newCoordinator(t, server.URL, Hooks{})
	ctx := context.Background()

	old := testToken(t, time.Now().Add(-time.Minute))
	if err := coordinator.SetPair(ctx, old, "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	if err := coordinator.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	token, ok := coordinator.AccessToken()
	if !ok {
		t.Fatal("expected fresh access token after refresh")
	}
	if token == old {
		t.Fatal("expected access token to change after refresh")
	}
	if token != backend.lastIssued() {
		t.Fatal("expected the token issued by the backend")
	}

	refresh, err := store.Get(ctx, "refreshToken")
	if err != nil || refresh != "rotated-r1" {
		t.Fatalf("expected rotated refresh token persisted, got %q err=%v", refresh, err)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	coordinator, _ := newCoordinator(t, "http://unused.invalid", Hooks{})

	if err := coordinator.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRefreshFailureClearsState(t *testing.T) {
	backend, server := newRefreshBackend(t, false)
	backend.rejectAll = true

	var failures atomic.Int64
	coordinator, store := newCoordinator(t, server.URL, Hooks{Failure: func() { failures.Add(1) }})
	ctx := context.Background()

	if err := coordinator.SetPair(ctx, testToken(t, time.Now().Add(-time.Minute)), "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	err := coordinator.Refresh(ctx)
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}

	if coordinator.Authenticated() {
		t.Fatal("expected pair to be cleared after refresh failure")
	}
	if _, err := store.Get(ctx, "accessToken"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected persisted access token removed, got %v", err)
	}
	if failures.Load() != 1 {
		t.Fatalf("expected one failure hook invocation, got %d", failures.Load())
	}
}

func TestRefreshTransportErrorClearsState(t *testing.T) {
	coordinator, _ := newCoordinator(t, "http://127.0.0.1:1/refresh", Hooks{})
	ctx := context.Background()

	if err := coordinator.SetPair(ctx, testToken(t, time.Now().Add(-time.Minute)), "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	if err := coordinator.Refresh(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if coordinator.Authenticated() {
		t.Fatal("expected pair cleared after transport failure")
	}
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	backend, server := newRefreshBackend(t, true)

	var coalesced atomic.Int64
	coordinator, _ := newCoordinator(t, server.URL, Hooks{Coalesced: func() { coalesced.Add(1) }})
	ctx := context.Background()

	if err := coordinator.SetPair(ctx, testToken(t, time.Now().Add(-time.Minute)), "r1"); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	tokens := make(chan string, n)
	failures := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			token, err := coordinator.GetValidAccessToken(ctx)
			if err != nil {
				failures <- err
				return
			}
			tokens <- token
		}()
	}

	<-backend.entered
	backend.open()
	wg.Wait()
	close(tokens)
	close(failures)

	for err := range failures {
		t.Fatalf("unexpected caller error: %v", err)
	}

	if got := backend.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh network call, got %d", got)
	}

	want := backend.lastIssued()
	count := 0
	for token := range tokens {
		count++
		if token != want {
			t.Fatal("expected every caller to observe the same refreshed token")
		}
	}
	if count != n {
		t.Fatalf("expected %d resolved callers, got %d", n, count)
	}
	if got := coalesced.Load(); got > n-1 {
		t.Fatalf("expected at most %d coalesced callers, got %d", n-1, got)
	}
}

func TestRestoreRehydratesPersistedPair(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	access := testToken(t, time.Now().Add(time.Hour))
	_ = store.Set(ctx, "accessToken", access)
	_ = store.Set(ctx, "refreshToken", "r1")

	coordinator := NewCoordinator(Config{ExpiryLeeway: 30 * time.Second}, http.DefaultClient, store, time.Now, nil, Hooks{})
	if err := coordinator.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	token, ok := coordinator.AccessToken()
	if !ok || token != access {
		t.Fatalf("expected restored access token, got ok=%v", ok)
	}
	if !coordinator.Authenticated() {
		t.Fatal("expected restored refresh token")
	}
}

func TestRestoreClearsMalformedPersistedToken(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "accessToken", "corrupted")
	_ = store.Set(ctx, "refreshToken", "r1")

	coordinator := NewCoordinator(Config{}, http.DefaultClient, store, time.Now, nil, Hooks{})
	if err := coordinator.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if coordinator.Authenticated() {
		t.Fatal("expected malformed persisted state to be cleared")
	}
	if _, err := store.Get(ctx, "accessToken"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected persisted access token removed, got %v", err)
	}
}
