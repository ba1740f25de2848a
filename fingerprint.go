package authguard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/voyatra/authguard/storage"
)

const fingerprintKey = "deviceFingerprint"

// FingerprintSignals are the environment attributes hashed into a device
// fingerprint. Hosts collect them from whatever runtime they embed the
// client in.
type FingerprintSignals struct {
	UserAgent      string
	Locale         string
	Timezone       string
	TimezoneOffset int
	ScreenWidth    int
	ScreenHeight   int
	ColorDepth     int
	CanvasHash     string
}

func (s FingerprintSignals) empty() bool {
	return s == FingerprintSignals{}
}

func (s FingerprintSignals) digest() string {
	var b strings.Builder
	b.WriteString(s.UserAgent)
	b.WriteByte('|')
	b.WriteString(s.Locale)
	b.WriteByte('|')
	b.WriteString(s.Timezone)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.TimezoneOffset))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.ScreenWidth))
	b.WriteByte('x')
	b.WriteString(strconv.Itoa(s.ScreenHeight))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.ColorDepth))
	b.WriteByte('|')
	b.WriteString(s.CanvasHash)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// loadOrCreateFingerprint returns a fingerprint stable across the session.
// Empty signals fall back to a random per-install value so the header is
// always present.
func loadOrCreateFingerprint(ctx context.Context, store storage.Store, signals FingerprintSignals) (string, error) {
	existing, err := store.Get(ctx, fingerprintKey)
	if err == nil && existing != "" {
		return existing, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	var fp string
	if signals.empty() {
		sum := sha256.Sum256([]byte(uuid.NewString()))
		fp = hex.EncodeToString(sum[:])
	} else {
		fp = signals.digest()
	}

	if err := store.Set(ctx, fingerprintKey, fp); err != nil {
		return "", err
	}
	return fp, nil
}
