package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	gsessions "github.com/gorilla/sessions"

	"github.com/simplesocial/simplesocial/internal/auth"
	"github.com/simplesocial/simplesocial/internal/auth/oidc"
	"github.com/simplesocial/simplesocial/internal/domain/services"
)

const (
	// stateSession is the short-lived cookie session holding the OAuth state
	// between the login redirect and the provider callback
	stateSession = "simplesocial_oauth"

	stateKey = "oauth_state"
)

// Handler serves the authentication HTTP endpoints
type Handler struct {
	log      *slog.Logger
	login    *services.LoginService
	sessions *auth.SessionManager
	exchange *oidc.Exchanger
	state    *gsessions.CookieStore
}

// New creates the HTTP handler set
func New(login *services.LoginService, sessions *auth.SessionManager, exchange *oidc.Exchanger, cookieSecret []byte) *Handler {
	store := gsessions.NewCookieStore(cookieSecret)
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   10 * 60, // the OAuth round trip should take seconds, not minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Handler{
		log:      slog.Default().With(slog.String("component", "http")),
		login:    login,
		sessions: sessions,
		exchange: exchange,
		state:    store,
	}
}

// Router builds the route table
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(LogRequest)

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/login", h.LocalLogin).Methods("POST")
	r.HandleFunc("/login/google", h.GoogleLogin).Methods("GET")
	r.HandleFunc("/login/google/callback", h.GoogleCallback).Methods("GET")
	r.HandleFunc("/logout", h.Logout).Methods("POST")

	r.Handle("/me", h.RequireAuth(http.HandlerFunc(h.Me))).Methods("GET")

	return r
}

// Health is a liveness probe
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
