package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks the cryptographic signature of ID tokens against the
// provider's published signing keys.
type Verifier struct {
	keys KeyResolver
}

// NewVerifier creates a verifier backed by the given key resolver
func NewVerifier(keys KeyResolver) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses the compact token, resolves the signing key named by the kid
// header and verifies the RS256 signature. Claim validation (expiry, issuer,
// audience) is a separate step: see ValidateClaims. The payload is only
// surfaced as VerifiedClaims after the signature has been verified.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*VerifiedClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		// Claim checks run in ValidateClaims against an explicit clock,
		// so the parser does signature verification only.
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: missing kid in token header", ErrMalformedToken)
		}

		key, err := v.keys.ResolveKey(ctx, kid)
		if err != nil {
			return nil, err
		}

		return key, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	if !token.Valid {
		return nil, ErrSignatureInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims format", ErrMalformedToken)
	}

	return claimsFromToken(mapClaims), nil
}

// mapParseError translates golang-jwt parse errors into the package taxonomy.
// Key resolver errors pass through unchanged so callers can tell a rotation
// miss from a bad signature.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrKeyFetch),
		errors.Is(err, ErrMalformedToken):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
