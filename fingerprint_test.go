package authguard

import (
	"context"
	"testing"

	"github.com/voyatra/authguard/storage"
)

func testSignals() FingerprintSignals {
	return FingerprintSignals{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64)",
		Locale:         "en-US",
		Timezone:       "Europe/Amsterdam",
		TimezoneOffset: -120,
		ScreenWidth:    2560,
		ScreenHeight:   1440,
		ColorDepth:     24,
		CanvasHash:     "c41ca9a8",
	}
}

func TestFingerprintDeterministicForSameSignals(t *testing.T) {
	a := testSignals().digest()
	b := testSignals().digest()
	if a != b {
		t.Fatalf("same signals produced %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(a))
	}

	changed := testSignals()
	changed.ScreenWidth = 1920
	if changed.digest() == a {
		t.Fatal("different signals produced the same fingerprint")
	}
}

func TestFingerprintStableWithinSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := loadOrCreateFingerprint(ctx, store, testSignals())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := loadOrCreateFingerprint(ctx, store, FingerprintSignals{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Fatal("fingerprint changed within one session store")
	}
}

func TestFingerprintFallbackWithoutSignals(t *testing.T) {
	ctx := context.Background()

	a, err := loadOrCreateFingerprint(ctx, storage.NewMemoryStore(), FingerprintSignals{})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("fallback length = %d, want 64 hex chars", len(a))
	}

	b, err := loadOrCreateFingerprint(ctx, storage.NewMemoryStore(), FingerprintSignals{})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if a == b {
		t.Fatal("independent installs must not share a fallback fingerprint")
	}
}
