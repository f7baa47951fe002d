package utils // package utils provides helpers shared by the CLI and tests

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires_at"`
}

// NewAccessToken signs an HS256 JWT accepted by middleware.JWTAuth.  The
// claims carry sub, role, exp and iat.  Seat allocation has no login flow
// of its own; operators mint tokens for the identity provider's users
// with the token command.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	if userID == "" {
		return AccessToken{}, errors.New("empty subject")
	}
	if ttl <= 0 {
		return AccessToken{}, errors.New("ttl must be positive")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
