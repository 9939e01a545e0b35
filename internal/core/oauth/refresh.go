package oauth

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const refreshIssuer = "threadline"

// RefreshClaims are the validated contents of a refresh token.
type RefreshClaims struct {
	SessionID string
	DID       string
}

// IssueRefreshToken mints an HS256-signed JWS carrying the session id.
// The token rides in the signed refresh cookie and lets a client mint new
// access tokens without redoing the OAuth flow, as long as the session row
// in the KV store is still alive.
func IssueRefreshToken(secret []byte, sessionID, did string, ttl time.Duration) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer(refreshIssuer).
		Subject(sessionID).
		Claim("did", did).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build refresh token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return string(signed), nil
}

// ParseRefreshToken verifies the signature, issuer, and expiry of a refresh
// token and returns its claims.
func ParseRefreshToken(secret []byte, raw string) (*RefreshClaims, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, secret),
		jwt.WithIssuer(refreshIssuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	did, _ := token.Get("did")
	didStr, _ := did.(string)
	if token.Subject() == "" || didStr == "" {
		return nil, ErrInvalidToken
	}

	return &RefreshClaims{SessionID: token.Subject(), DID: didStr}, nil
}
