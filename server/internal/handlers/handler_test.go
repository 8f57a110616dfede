package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/simplesocial/simplesocial/internal/auth"
	"github.com/simplesocial/simplesocial/internal/auth/oidc"
	"github.com/simplesocial/simplesocial/internal/domain/entities"
	"github.com/simplesocial/simplesocial/internal/domain/repositories"
	"github.com/simplesocial/simplesocial/internal/domain/services"
)

const (
	testIssuer   = "https://accounts.google.com"
	testAudience = "client-123"
)

// memRepo is a minimal in-memory UserRepository for handler tests
type memRepo struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*entities.User)}
}

func (m *memRepo) key(email string, t entities.UserType) string {
	return email + "|" + string(t)
}

func (m *memRepo) Create(ctx context.Context, user *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(user.Email, user.UserType)
	if _, ok := m.users[key]; ok {
		return repositories.ErrDuplicateUser
	}
	stored := *user
	m.users[key] = &stored
	return nil
}

func (m *memRepo) GetByEmailAndType(ctx context.Context, email string, t entities.UserType) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[m.key(email, t)]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	found := *user
	return &found, nil
}

func (m *memRepo) GetRolesByEmail(ctx context.Context, email string) ([]entities.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []entities.Role
	for _, user := range m.users {
		if user.Email == email {
			roles = append(roles, user.Roles...)
		}
	}
	return roles, nil
}

type fakeExchanger struct {
	idToken string
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	return f.idToken, nil
}

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) ResolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, oidc.ErrKeyNotFound
	}
	return key, nil
}

// testHandler wires a full handler over in-memory fakes. The returned key
// signs ID tokens the verifier will trust.
func testHandler(t *testing.T, repo repositories.UserRepository, idToken string) (*Handler, *auth.SessionManager) {
	t.Helper()

	key := testRSAKey(t)
	sessions := auth.NewSessionManager("test-signing-key", time.Hour)
	login := services.NewLoginService(
		repo,
		&fakeExchanger{idToken: idToken},
		oidc.NewVerifier(staticKeys{"key-1": &key.PublicKey}),
		sessions,
		testIssuer,
		testAudience,
	)

	exchange := oidc.NewExchanger("client-123", "secret", "https://app.example.com/login/google/callback",
		[]string{"openid", "email"}, &oidc.DiscoveryDocument{
			AuthorizationEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
			TokenEndpoint:         "https://oauth2.googleapis.com/token",
		})

	return New(login, sessions, exchange, []byte("cookie-secret-32-bytes-long-ok!!")), sessions
}

var (
	rsaKeyOnce sync.Once
	rsaKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaKeyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate RSA key: %v", err)
		}
	})
	return rsaKey
}

func signIDToken(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   "108234",
		"iss":   testIssuer,
		"aud":   testAudience,
		"email": email,
		"iat":   float64(time.Now().Unix()),
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
	})
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString(testRSAKey(t))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestHealth(t *testing.T) {
	h, _ := testHandler(t, newMemRepo(), "")

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestLocalLogin(t *testing.T) {
	repo := newMemRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	hashStr := string(hash)
	repo.users["a@x.com|local"] = &entities.User{
		Email:        "a@x.com",
		PasswordHash: &hashStr,
		Enabled:      true,
		UserType:     entities.UserTypeLocal,
		Roles:        []entities.Role{entities.RoleCustomer},
	}

	h, _ := testHandler(t, repo, "")
	router := h.Router()

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"a@x.com","password":"hunter2"}`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Authorization") == "" {
			t.Error("expected a session token on the response")
		}

		var resp principalResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Email != "a@x.com" {
			t.Errorf("email = %q", resp.Email)
		}
		if len(resp.Authorities) != 1 || resp.Authorities[0] != "ROLE_CUSTOMER" {
			t.Errorf("authorities = %v", resp.Authorities)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"a@x.com","password":"wrong"}`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		// The client must not learn which check failed
		if got := strings.TrimSpace(rec.Body.String()); got != "Authentication failed" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`not json`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"a@x.com"}`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGoogleLogin_Redirects(t *testing.T) {
	h, _ := testHandler(t, newMemRepo(), "")

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/login/google", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if loc.Host != "accounts.google.com" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	if loc.Query().Get("state") == "" {
		t.Error("redirect is missing the state parameter")
	}
	if loc.Query().Get("client_id") != testAudience {
		t.Errorf("client_id = %q", loc.Query().Get("client_id"))
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected the state cookie on the response")
	}
}

func TestGoogleCallback(t *testing.T) {
	repo := newMemRepo()
	h, _ := testHandler(t, repo, signIDToken(t, "fed@x.com"))
	router := h.Router()

	// Start the flow to obtain a state value and its cookie
	startRec := httptest.NewRecorder()
	router.ServeHTTP(startRec, httptest.NewRequest("GET", "/login/google", nil))

	loc, _ := url.Parse(startRec.Header().Get("Location"))
	state := loc.Query().Get("state")
	cookies := startRec.Result().Cookies()

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/login/google/callback?code=auth-code&state="+url.QueryEscape(state), nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Authorization") == "" {
			t.Error("expected a session token on the response")
		}

		var resp principalResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Email != "fed@x.com" {
			t.Errorf("email = %q", resp.Email)
		}
		if len(resp.Authorities) != 1 || resp.Authorities[0] != "ROLE_CUSTOMER" {
			t.Errorf("authorities = %v", resp.Authorities)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/login/google/callback", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/login/google/callback?code=auth-code&state=forged", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/login/google/callback?error=access_denied", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestGoogleCallback_VerificationFailureCollapsesTo401(t *testing.T) {
	// An ID token for the wrong audience must surface as a generic 401
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   "108234",
		"iss":   testIssuer,
		"aud":   "other-client",
		"email": "fed@x.com",
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
	})
	token.Header["kid"] = "key-1"
	raw, err := token.SignedString(testRSAKey(t))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	h, _ := testHandler(t, newMemRepo(), raw)
	router := h.Router()

	startRec := httptest.NewRecorder()
	router.ServeHTTP(startRec, httptest.NewRequest("GET", "/login/google", nil))
	loc, _ := url.Parse(startRec.Header().Get("Location"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/login/google/callback?code=auth-code&state="+url.QueryEscape(loc.Query().Get("state")), nil)
	for _, c := range startRec.Result().Cookies() {
		req.AddCookie(c)
	}
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Authentication failed" {
		t.Errorf("body = %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	h, sessions := testHandler(t, newMemRepo(), "")
	router := h.Router()

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := sessions.Sign("a@x.com", []string{"ROLE_ADMIN", "ROLE_CUSTOMER"})
		if err != nil {
			t.Fatalf("failed to sign session: %v", err)
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp principalResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Email != "a@x.com" {
			t.Errorf("email = %q", resp.Email)
		}
		if len(resp.Authorities) != 2 {
			t.Errorf("authorities = %v", resp.Authorities)
		}
	})
}

func TestLogout(t *testing.T) {
	h, _ := testHandler(t, newMemRepo(), "")

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the session cookie to be expired")
	}
}
