package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, carries a bad
	// signature, or was signed with an unexpected algorithm.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when expiry verification is requested and
	// the token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Scope distinguishes access tokens from refresh tokens.
type Scope string

const (
	ScopeAccess  Scope = "access"
	ScopeRefresh Scope = "refresh"
)

// Claims is the signed claim set carried by both token kinds. No user
// identity is embedded; identity is always re-derived from the session.
type Claims struct {
	SessionID string `json:"session_id"`
	Scope     Scope  `json:"scope"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies compact session tokens with a symmetric
// secret (HS256). The secret and algorithm are injected, never ambient.
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
}

// NewTokenCodec returns a TokenCodec signing with the given HMAC algorithm
// identifier (HS256, HS384, or HS512) and secret. Asymmetric algorithm
// identifiers are rejected.
func NewTokenCodec(algorithm, secret string) (*TokenCodec, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenCodec{secret: []byte(secret), method: method}, nil
}

// Encode issues a signed token for the session and scope. expireAt, when
// non-zero, takes precedence over ttl; with both zero the token carries no
// expiry claim.
func (c *TokenCodec) Encode(sessionID string, scope Scope, ttl time.Duration, expireAt time.Time) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		Scope:     scope,
	}
	switch {
	case !expireAt.IsZero():
		claims.ExpiresAt = jwt.NewNumericDate(expireAt)
	case ttl > 0:
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode parses and verifies the token signature. Expiry is checked only
// when verifyExpiry is true; refresh token liveness is governed by session
// state, so refresh validation decodes with verifyExpiry=false.
// Returns ErrTokenExpired for a passed exp claim and ErrTokenInvalid for
// every other failure.
func (c *TokenCodec) Decode(tokenString string, verifyExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{c.method.Alg()})}
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
