package tokens

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var unverifiedParser = jwt.NewParser()

// Inspect structurally checks an access token and extracts its expiry.
// A token is structurally valid when it has three dot-separated segments
// and its claims decode; the signature is deliberately not verified
// client-side. Tokens without an exp claim return a zero expiry.
func Inspect(token string) (expiresAt time.Time, ok bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false
	}
	if exp == nil {
		return time.Time{}, true
	}
	return exp.Time, true
}
