// Package auth holds the HTTP-facing pieces of sign-in: session tokens,
// password hashers, the session middleware and the GitHub OAuth provider.
//
// SESSION TOKEN FLOW:
//  1. POST /api/auth/login (or signup, or the GitHub callback) succeeds
//  2. The handler issues a JWT whose subject is the signed-in email and
//     stores it in the HttpOnly "token" cookie
//  3. RequireSession validates the token on every protected request and
//     checks it still names the account that holds the current session
//  4. POST /api/auth/logout ends the session, which invalidates every
//     outstanding token at once
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"ada@example.com","iss":"ticketflow","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "ticketflow"

	// DefaultTokenTTL applies when NewTokenService is given ttl <= 0.
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService signs and validates session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long a freshly issued token stays valid. Handlers use it for
// the cookie's MaxAge so the cookie and the token expire together.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims embeds jwt.RegisteredClaims; "sub" carries the account email.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for email that expires after the service's TTL.
func (s *TokenService) Generate(email string) (string, error) {
	return s.GenerateWithDuration(email, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// yields an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(email string, d time.Duration) (string, error) {
	if email == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenStr and returns the email in its "sub" claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and carries an expiry at all
//   - Issuer is "ticketflow"
//   - Algorithm is HS256; WithValidMethods blocks the "alg":"none" trick
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
