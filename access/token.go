package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired decodes the session token's registered claims without
// verifying the signature (the signing key belongs to the backend) and
// reports whether the token has lapsed. The backend remains the authority
// either way. This is only a pre-check that fails fast before a doomed
// dispatch, so an opaque or unparseable token, or one without an exp claim,
// carries no local expiry information and never expires here.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
