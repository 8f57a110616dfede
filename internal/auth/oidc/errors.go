package oidc

import "errors"

// Errors returned by the ID token verification pipeline. Handlers collapse all
// of these into a generic authentication failure; the distinctions exist for
// logs and tests only.
var (
	// ErrKeyFetch is returned when the JWKS endpoint cannot be reached or parsed
	ErrKeyFetch = errors.New("failed to fetch signing keys")

	// ErrKeyNotFound is returned when the key set has no key for the requested kid
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrMalformedToken is returned when the token cannot be parsed at all
	ErrMalformedToken = errors.New("malformed ID token")

	// ErrSignatureInvalid is returned when the signature does not verify
	ErrSignatureInvalid = errors.New("ID token signature invalid")

	// ErrTokenExpired is returned when the exp claim is not after the validation time
	ErrTokenExpired = errors.New("ID token expired")

	// ErrIssuerMismatch is returned when the iss claim differs from the configured issuer
	ErrIssuerMismatch = errors.New("ID token issuer mismatch")

	// ErrAudienceMismatch is returned when the aud claim differs from the configured client ID
	ErrAudienceMismatch = errors.New("ID token audience mismatch")
)
