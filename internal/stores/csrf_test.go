package stores

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/voyatra/authguard/storage"
)

func newCSRFStore(t *testing.T) (*CSRFStore, *storage.MemoryStore) {
	t.Helper()

	session := storage.NewMemoryStore()
	return NewCSRFStore(session, rand.Reader), session
}

func TestCSRFIssueProducesHex256Bit(t *testing.T) {
	store, _ := newCSRFStore(t)

	token, err := store.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	for _, c := range token {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("unexpected non-hex character %q", c)
		}
	}
}

func TestCSRFIssueRotatesValue(t *testing.T) {
	store, _ := newCSRFStore(t)
	ctx := context.Background()

	first, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}
	second, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	if first == second {
		t.Fatal("expected two issues to yield different tokens")
	}
	if store.Validate(ctx, first) {
		t.Fatal("stale token must not validate")
	}
	if !store.Validate(ctx, second) {
		t.Fatal("current token must validate")
	}
}

func TestCSRFValidateWithoutIssueRejects(t *testing.T) {
	store, _ := newCSRFStore(t)

	if store.Validate(context.Background(), "anything") {
		t.Fatal("expected rejection when no token was issued")
	}
}

func TestCSRFCurrentAndClear(t *testing.T) {
	store, session := newCSRFStore(t)
	ctx := context.Background()

	if _, ok := store.Current(ctx); ok {
		t.Fatal("expected no current token before Issue")
	}

	token, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	current, ok := store.Current(ctx)
	if !ok || current != token {
		t.Fatalf("expected current token %q, got %q (ok=%v)", token, current, ok)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := store.Current(ctx); ok {
		t.Fatal("expected no current token after Clear")
	}
	if session.Len() != 0 {
		t.Fatalf("expected empty session store, got %d keys", session.Len())
	}
}
