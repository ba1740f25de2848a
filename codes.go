package authguard

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"sync"
)

// HashedCodeVerifier compares submissions against per-user SHA-256 hashed
// codes, as delivered out of band over SMS or email. Codes survive repeated
// verification until replaced.
type HashedCodeVerifier struct {
	mu    sync.RWMutex
	codes map[string][32]byte
}

func NewHashedCodeVerifier() *HashedCodeVerifier {
	return &HashedCodeVerifier{
		codes: make(map[string][32]byte),
	}
}

// SetCode stores the hash of the current code for a user.
func (v *HashedCodeVerifier) SetCode(userID, code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes[userID] = sha256.Sum256([]byte(code))
}

func (v *HashedCodeVerifier) Verify(userID, submission string) bool {
	v.mu.RLock()
	want, ok := v.codes[userID]
	v.mu.RUnlock()
	if !ok {
		return false
	}

	got := sha256.Sum256([]byte(strings.TrimSpace(submission)))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// BackupCodeVerifier verifies single-use recovery codes. A matching code is
// consumed and never verifies again.
type BackupCodeVerifier struct {
	minLength int

	mu    sync.Mutex
	codes map[string][][32]byte
}

func NewBackupCodeVerifier(minLength int) *BackupCodeVerifier {
	if minLength <= 0 {
		minLength = 8
	}
	return &BackupCodeVerifier{
		minLength: minLength,
		codes:     make(map[string][][32]byte),
	}
}

// SetCodes replaces the user's unused backup codes.
func (v *BackupCodeVerifier) SetCodes(userID string, codes []string) {
	hashed := make([][32]byte, 0, len(codes))
	for _, code := range codes {
		hashed = append(hashed, sha256.Sum256([]byte(code)))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes[userID] = hashed
}

// Remaining reports how many unused codes the user has.
func (v *BackupCodeVerifier) Remaining(userID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.codes[userID])
}

func (v *BackupCodeVerifier) Verify(userID, submission string) bool {
	trimmed := strings.TrimSpace(submission)
	if len(trimmed) < v.minLength {
		return false
	}
	got := sha256.Sum256([]byte(trimmed))

	v.mu.Lock()
	defer v.mu.Unlock()

	remaining := v.codes[userID]
	for i, want := range remaining {
		if subtle.ConstantTimeCompare(want[:], got[:]) == 1 {
			v.codes[userID] = append(remaining[:i], remaining[i+1:]...)
			return true
		}
	}
	return false
}

// SyntacticVerifier accepts any six-digit submission. It exists for demo
// flows where the server performs the real verification; production hosts
// register a real verifier instead.
type SyntacticVerifier struct{}

func (SyntacticVerifier) Verify(_, submission string) bool {
	trimmed := strings.TrimSpace(submission)
	return len(trimmed) == 6 && isNumericString(trimmed)
}
