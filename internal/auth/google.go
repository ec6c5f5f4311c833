package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// ErrGoogleEmailUnverified is returned for a valid Google token whose email
// Google has not verified.
var ErrGoogleEmailUnverified = errors.New("auth: Google email not verified")

// GoogleIdentity is what the portal keeps from a verified Google ID token.
type GoogleIdentity struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// GoogleVerifier turns a Google ID token from the browser's sign-in button
// into a verified identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// tokenValidator is the part of *idtoken.Validator we use.
type tokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// IDTokenVerifier checks ID tokens against Google's published signing keys.
//
// GOOGLE SIGN-IN FLOW:
//  1. The frontend shows Google's button; Google hands the browser an ID token
//  2. The browser POSTs it to /api/auth/google as {"id_token": "..."}
//  3. We verify signature, issuer, expiry and that the audience is OUR client
//     id (a token minted for some other app must not log anyone in here)
//  4. The email claim must be verified by Google
//
// No client secret is involved: verification only needs Google's public keys,
// which the idtoken package fetches and caches.
type IDTokenVerifier struct {
	validator tokenValidator
	audience  string
}

// NewGoogleVerifier builds a verifier for tokens issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("auth: Google client id is required")
	}
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("auth: creating Google token validator: %w", err)
	}
	return &IDTokenVerifier{validator: v, audience: clientID}, nil
}

// Verify validates idToken and extracts the profile claims.
func (g *IDTokenVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	payload, err := g.validator.Validate(ctx, idToken, g.audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &GoogleIdentity{
		Subject:    payload.Subject,
		Email:      stringClaim(payload.Claims, "email"),
		GivenName:  stringClaim(payload.Claims, "given_name"),
		FamilyName: stringClaim(payload.Claims, "family_name"),
		Picture:    stringClaim(payload.Claims, "picture"),
	}
	if id.Email == "" || !boolClaim(payload.Claims, "email_verified") {
		return nil, ErrGoogleEmailUnverified
	}
	return id, nil
}

func stringClaim(claims map[string]any, name string) string {
	s, _ := claims[name].(string)
	return s
}

// boolClaim reads a boolean claim. Google has sent email_verified both as a
// JSON bool and as the string "true".
func boolClaim(claims map[string]any, name string) bool {
	switch v := claims[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
