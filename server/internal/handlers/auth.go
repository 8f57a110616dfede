package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/simplesocial/simplesocial/internal/auth"
)

// loginRequest is the body of a local login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// principalResponse is returned after a successful login or from /me
type principalResponse struct {
	Email       string   `json:"email"`
	Authorities []string `json:"authorities"`
}

// LocalLogin authenticates a password credential and issues a session token
func (h *Handler) LocalLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, authorities, err := h.login.LocalLogin(ctx, w, req.Email, req.Password)
	if err != nil {
		// The reason stays in the logs; the client only learns that
		// authentication failed.
		h.log.Warn("local login rejected",
			slog.String("email", req.Email),
			slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, principalResponse{
		Email:       user.Email,
		Authorities: authorities,
	})
}

// GoogleLogin starts the federated login flow: it stores a fresh state value
// in a short-lived cookie session and redirects to the provider.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := generateState()

	session, _ := h.state.Get(r, stateSession)
	session.Values[stateKey] = state
	if err := session.Save(r, w); err != nil {
		h.log.Error("failed to save state session", slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.exchange.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the federated login flow. Any failure in the chain
// collapses into a single 401; internal error kinds are logged only.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.log.Warn("provider returned error",
			slog.String("error", errParam),
			slog.String("description", r.URL.Query().Get("error_description")))
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	session, _ := h.state.Get(r, stateSession)
	savedState, ok := session.Values[stateKey].(string)
	if !ok || savedState == "" || savedState != r.URL.Query().Get("state") {
		h.log.Warn("state mismatch on callback, possible CSRF attempt")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	// The state is single-use
	delete(session.Values, stateKey)
	session.Save(r, w)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	user, authorities, err := h.login.FederatedLogin(ctx, w, code)
	if err != nil {
		h.log.Warn("federated login rejected", slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, principalResponse{
		Email:       user.Email,
		Authorities: authorities,
	})
}

// Logout clears the session cookie. Session tokens are stateless so there is
// nothing to revoke server-side; the cookie simply goes away.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated principal
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, principalResponse{
		Email:       principal.Email,
		Authorities: principal.Authorities,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
