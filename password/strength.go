package password

import (
	"strings"
	"unicode/utf8"
)

// Strength is the banded verdict over a score.
type Strength int

const (
	// VeryWeak is the band for passwords failing most checks.
	VeryWeak Strength = iota
	// Weak is the highest band reachable while any hard requirement fails.
	Weak
	// Fair is the band for passwords meeting the basics only.
	Fair
	// Good is the band for passwords with length and variety headroom.
	Good
	// Strong is the band just below the maximum.
	Strong
	// VeryStrong is the band for long, varied, non-guessable passwords.
	VeryStrong
)

// String implements fmt.Stringer.
func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "very-weak"
	case Weak:
		return "weak"
	case Fair:
		return "fair"
	case Good:
		return "good"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very-strong"
	default:
		return "unknown"
	}
}

// Result carries the score, its band, and verbatim UI feedback. Errors are
// hard requirements the candidate fails; suggestions are improvements.
type Result struct {
	Score       int
	Strength    Strength
	Errors      []string
	Suggestions []string
}

const symbolSet = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

// blockedSubstrings are checked case-insensitively. Runs cover ascending
// digit, alphabet, and keyboard triples.
var blockedSubstrings = buildBlocklist()

func buildBlocklist() []string {
	list := []string{
		"qwe", "wer", "ert", "asd", "sdf", "zxc",
		"password", "admin", "letmein", "welcome",
	}
	for c := byte('0'); c <= '7'; c++ {
		list = append(list, string([]byte{c, c + 1, c + 2}))
	}
	for c := byte('a'); c <= 'x'; c++ {
		list = append(list, string([]byte{c, c + 1, c + 2}))
	}
	return list
}

// Evaluate scores a candidate password. Each check is independent and
// additive; the band is derived from the total, capped at [Weak] while any
// hard requirement fails.
func Evaluate(candidate string) Result {
	result := Result{}

	// Length tiers count characters, not bytes, so multibyte passwords get
	// no extra credit for encoding width.
	length := utf8.RuneCountInString(candidate)
	switch {
	case length >= 8:
		result.Score++
	default:
		result.Errors = append(result.Errors, "must be at least 8 characters long")
	}
	switch {
	case length >= 12:
		result.Score++
	default:
		result.Suggestions = append(result.Suggestions, "use 12 or more characters")
	}
	if length >= 16 {
		result.Score++
	}

	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain a lowercase letter")
	}
	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain an uppercase letter")
	}
	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= '0' && r <= '9' }) {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain a digit")
	}
	if strings.ContainsAny(candidate, symbolSet) {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain a symbol")
	}

	if hasRepeatedRun(candidate) {
		result.Suggestions = append(result.Suggestions, "avoid repeating the same character three or more times in a row")
	} else {
		result.Score++
	}

	if containsBlocked(candidate) {
		result.Suggestions = append(result.Suggestions, "avoid common sequences and guessable words")
	} else {
		result.Score++
	}

	if uniqueRatio(candidate) > 0.6 {
		result.Score++
	} else {
		result.Suggestions = append(result.Suggestions, "use a wider variety of characters")
	}

	result.Strength = band(result.Score)
	if len(result.Errors) > 0 && result.Strength > Weak {
		result.Strength = Weak
	}

	return result
}

func band(score int) Strength {
	switch {
	case score <= 2:
		return VeryWeak
	case score <= 3:
		return Weak
	case score <= 5:
		return Fair
	case score <= 7:
		return Good
	case score <= 8:
		return Strong
	default:
		return VeryStrong
	}
}

func hasRepeatedRun(candidate string) bool {
	runes := []rune(candidate)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= 3 {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

func containsBlocked(candidate string) bool {
	lowered := strings.ToLower(candidate)
	for _, blocked := range blockedSubstrings {
		if strings.Contains(lowered, blocked) {
			return true
		}
	}
	return false
}

func uniqueRatio(candidate string) float64 {
	if candidate == "" {
		return 0
	}
	seen := make(map[rune]struct{}, len(candidate))
	total := 0
	for _, r := range candidate {
		seen[r] = struct{}{}
		total++
	}
	return float64(len(seen)) / float64(total)
}
