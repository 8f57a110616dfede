package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a session token cannot be parsed or verified
	ErrInvalidToken = errors.New("invalid session token")

	// ErrExpiredToken is returned when a session token has expired
	ErrExpiredToken = errors.New("session token expired")

	// ErrSessionIssuance is returned when a session token cannot be constructed
	ErrSessionIssuance = errors.New("failed to issue session token")
)

const (
	// SessionCookie is the cookie carrying the session token
	SessionCookie = "simplesocial_session"

	// sessionIssuer is the iss claim stamped on every session token
	sessionIssuer = "simplesocial"
)

// SessionClaims are the claims carried by the application's own session token
type SessionClaims struct {
	// Authorities is the set of role authorities granted for this session,
	// fixed at issuance
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

// Email returns the principal email the session was issued for
func (c *SessionClaims) Email() string {
	return c.Subject
}

// SessionManager issues and validates the application's session tokens.
// Tokens are stateless: validity is determined entirely by signature and expiry.
type SessionManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewSessionManager creates a session manager signing with the given secret
func NewSessionManager(secretKey string, tokenDuration time.Duration) *SessionManager {
	return &SessionManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Issue signs a session token for the principal and attaches it to the
// response, both as a bearer header and as an HttpOnly cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, email string, authorities []string) (string, error) {
	token, expiresAt, err := m.Sign(email, authorities)
	if err != nil {
		return "", err
	}

	w.Header().Set("Authorization", "Bearer "+token)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return token, nil
}

// Sign creates a signed session token without attaching it to a response
func (m *SessionManager) Sign(email string, authorities []string) (string, time.Time, error) {
	if len(m.secretKey) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: signing key not configured", ErrSessionIssuance)
	}

	now := time.Now()
	expiresAt := now.Add(m.tokenDuration)

	claims := SessionClaims{
		Authorities: authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSessionIssuance, err)
	}

	return tokenString, expiresAt, nil
}

// Validate verifies a session token and returns its claims
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenFromRequest extracts the session token from the Authorization header
// or, failing that, the session cookie. Returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(bearerPrefix) && h[:len(bearerPrefix)] == bearerPrefix {
		return h[len(bearerPrefix):]
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}

	return ""
}
