package oidc

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifiedClaims is the claim set of an ID token whose signature has been
// verified. Values of this type are only produced by Verifier.Verify; claim
// content is never read from a token before its signature checks out.
type VerifiedClaims struct {
	// Subject - unique identifier for the user at the provider
	Subject string

	// Email address asserted by the provider
	Email string

	// EmailVerified indicates if the email has been verified by the provider
	EmailVerified bool

	// Issuer is the provider that issued the token (e.g. "https://accounts.google.com")
	Issuer string

	// Audience is the client ID the token was issued for
	Audience string

	// IssuedAt is when the token was issued
	IssuedAt time.Time

	// ExpiresAt is when the token expires
	ExpiresAt time.Time
}

// claimsFromToken builds VerifiedClaims from a verified token payload.
// Unexported on purpose: the only path to VerifiedClaims is through Verify.
func claimsFromToken(mapClaims jwt.MapClaims) *VerifiedClaims {
	sub, _ := mapClaims["sub"].(string)
	iss, _ := mapClaims["iss"].(string)
	email, _ := mapClaims["email"].(string)
	emailVerified, _ := mapClaims["email_verified"].(bool)

	// The aud claim can be a string or an array of strings per OIDC spec
	var aud string
	switch v := mapClaims["aud"].(type) {
	case string:
		aud = v
	case []interface{}:
		if len(v) > 0 {
			if audStr, ok := v[0].(string); ok {
				aud = audStr
			}
		}
	}

	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return &VerifiedClaims{
		Subject:       sub,
		Email:         email,
		EmailVerified: emailVerified,
		Issuer:        iss,
		Audience:      aud,
		IssuedAt:      time.Unix(int64(iat), 0),
		ExpiresAt:     time.Unix(int64(exp), 0),
	}
}
