package authguard

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const totpSecretBytes = 20

// TOTPConfig controls the RFC 6238 verifier.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the number of time steps accepted on either side of now.
	Skew int
}

func defaultTOTPConfig() TOTPConfig {
	return TOTPConfig{
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	}
}

// TOTPVerifier verifies time-based one-time passwords against per-user
// secrets. It implements [CodeVerifier].
type TOTPVerifier struct {
	config TOTPConfig
	now    func() time.Time

	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewTOTPVerifier(cfg TOTPConfig, now func() time.Time) *TOTPVerifier {
	def := defaultTOTPConfig()
	if cfg.Digits <= 0 {
		cfg.Digits = def.Digits
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.Skew < 0 {
		cfg.Skew = def.Skew
	}
	if now == nil {
		now = time.Now
	}
	return &TOTPVerifier{
		config:  cfg,
		now:     now,
		secrets: make(map[string][]byte),
	}
}

// GenerateSecret creates a new secret and returns the raw bytes plus the
// base32 form used by authenticator apps.
func (v *TOTPVerifier) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// SetSecret registers the base32 secret for a user.
func (v *TOTPVerifier) SetSecret(userID, secretBase32 string) error {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	raw, err := enc.DecodeString(strings.ToUpper(strings.TrimSpace(secretBase32)))
	if err != nil {
		return errors.New("invalid base32 totp secret")
	}
	if len(raw) == 0 {
		return errors.New("empty totp secret")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[userID] = raw
	return nil
}

// ProvisionURI builds an otpauth:// URI for enrolling the secret.
func (v *TOTPVerifier) ProvisionURI(secretBase32, account string) string {
	issuer := v.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	q := url.Values{}
	q.Set("secret", secretBase32)
	q.Set("issuer", issuer)
	q.Set("period", strconv.Itoa(v.config.Period))
	q.Set("digits", strconv.Itoa(v.config.Digits))
	q.Set("algorithm", strings.ToUpper(v.config.Algorithm))

	return "otpauth://totp/" + label + "?" + q.Encode()
}

// Verify checks a submitted code for the user. Unknown users and malformed
// codes fail closed.
func (v *TOTPVerifier) Verify(userID, submission string) bool {
	trimmed := strings.TrimSpace(submission)
	if len(trimmed) != v.config.Digits || !isNumericString(trimmed) {
		return false
	}

	v.mu.RLock()
	secret, ok := v.secrets[userID]
	v.mu.RUnlock()
	if !ok {
		return false
	}

	baseCounter := v.now().Unix() / int64(v.config.Period)
	for step := -v.config.Skew; step <= v.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, v.config.Digits, v.config.Algorithm)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true
		}
	}

	return false
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
