package oidc

import (
	"errors"
	"fmt"
	"time"
)

// ValidateClaims enforces the expiry, issuer and audience invariants on a
// verified claim set. All three checks run even after one fails so the
// returned error names every reason; any single failure rejects the token.
// Issuer and audience are compared by exact string equality, no normalization.
func ValidateClaims(claims *VerifiedClaims, expectedIssuer, expectedAudience string, now time.Time) error {
	var errs []error

	// exp must be strictly after now
	if !claims.ExpiresAt.After(now) {
		errs = append(errs, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339)))
	}

	if claims.Issuer != expectedIssuer {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrIssuerMismatch, claims.Issuer))
	}

	if claims.Audience != expectedAudience {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrAudienceMismatch, claims.Audience))
	}

	return errors.Join(errs...)
}
