// Package auth handles sessions for the portal: signed session tokens,
// password hashing, Google ID-token verification and the middleware that
// turns a session cookie into a loaded user.
//
// SESSION FLOW:
//  1. Signup, login or Google sign-in succeeds → Issue(userID)
//  2. The token goes into the HttpOnly "token" cookie
//  3. On every protected request RequireAuth reads the cookie, verifies the
//     token, loads the user from storage and puts it in the request context
//
// There is no server-side session store and no revocation list. A token is
// good until it expires; logout only clears the cookie.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userid>","userid":"<userid>","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long a session lasts when no lifetime is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

const issuer = "recruiting-portal"

// Verification failures. Callers match them with errors.Is.
var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 selects DefaultTokenTTL.
// Example secret: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Issue. The session cookie uses it as
// its Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload.
//
// WHY BOTH "sub" AND "userid"?
// Sessions minted by earlier versions of the portal carry only "userid".
// New tokens set both, and Verify accepts either, so a deploy does not log
// everybody out.
type claims struct {
	UserID string `json:"userid,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID that expires after the service TTL.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithDuration(userID, s.ttl)
}

// IssueWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already expired token.
func (s *TokenService) IssueWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the user id.
//
// Errors are ErrExpiredToken for an otherwise valid token past its exp, and
// ErrInvalidToken for everything else (bad signature, wrong algorithm,
// malformed payload, no user id).
//
// ALGORITHM CONFUSION ATTACK:
// jwt.WithValidMethods rejects tokens signed with "none" or an asymmetric
// algorithm that the HMAC secret would otherwise be fed into.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := c.Subject
	if userID == "" {
		userID = c.UserID
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return userID, nil
}
