package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/simplesocial/simplesocial/internal/auth"
	"github.com/simplesocial/simplesocial/internal/auth/oidc"
	"github.com/simplesocial/simplesocial/internal/domain/entities"
	"github.com/simplesocial/simplesocial/internal/domain/repositories"
	"github.com/simplesocial/simplesocial/internal/pkg/idgen"
)

var (
	// ErrInvalidCredentials is returned for any local login failure
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserProvisioning is returned when a federated identity cannot be
	// resolved or persisted as a local user
	ErrUserProvisioning = errors.New("failed to provision user")
)

// CodeExchanger trades an authorization code for a raw ID token string
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// LoginService runs the two login flows: local password authentication and
// federated login against the configured identity provider. Both end in the
// same place, a session token on the response.
type LoginService struct {
	users    repositories.UserRepository
	exchange CodeExchanger
	verifier *oidc.Verifier
	sessions *auth.SessionManager

	issuer   string
	audience string

	log *slog.Logger
	now func() time.Time
}

// NewLoginService creates a login service. Expected issuer and audience are
// explicit values, not read from ambient configuration.
func NewLoginService(
	users repositories.UserRepository,
	exchange CodeExchanger,
	verifier *oidc.Verifier,
	sessions *auth.SessionManager,
	issuer string,
	audience string,
) *LoginService {
	return &LoginService{
		users:    users,
		exchange: exchange,
		verifier: verifier,
		sessions: sessions,
		issuer:   issuer,
		audience: audience,
		log:      slog.Default().With(slog.String("service", "login")),
		now:      time.Now,
	}
}

// FederatedLogin runs the federated login chain for an authorization code:
// token exchange, key resolution, signature verification, claims validation,
// identity mapping, session issuance. Failure at any stage aborts the chain;
// no partial session is ever issued.
func (s *LoginService) FederatedLogin(ctx context.Context, w http.ResponseWriter, code string) (*entities.User, []string, error) {
	idToken, err := s.exchange.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, err
	}

	if err := oidc.ValidateClaims(claims, s.issuer, s.audience, s.now()); err != nil {
		return nil, nil, err
	}

	user, authorities, err := s.mapToUser(ctx, claims, entities.UserTypeGoogle)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.sessions.Issue(w, user.Email, authorities); err != nil {
		return nil, nil, err
	}

	s.log.Info("federated login succeeded",
		slog.String("email", user.Email),
		slog.String("user_type", string(user.UserType)),
		slog.Int("authorities", len(authorities)))

	return user, authorities, nil
}

// LocalLogin authenticates a password credential and issues a session.
// Every failure mode reports the same invalid-credentials error.
func (s *LoginService) LocalLogin(ctx context.Context, w http.ResponseWriter, email, password string) (*entities.User, []string, error) {
	user, err := s.users.GetByEmailAndType(ctx, email, entities.UserTypeLocal)
	if err != nil {
		s.log.Warn("local login failed", slog.String("email", email), slog.String("reason", "lookup"))
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Enabled || !user.VerifyPassword(password) {
		s.log.Warn("local login failed", slog.String("email", email), slog.String("reason", "credentials"))
		return nil, nil, ErrInvalidCredentials
	}

	authorities := user.Authorities()
	if _, err := s.sessions.Issue(w, user.Email, authorities); err != nil {
		return nil, nil, err
	}

	s.log.Info("local login succeeded", slog.String("email", user.Email))

	return user, authorities, nil
}

// mapToUser resolves a verified external identity to a local user record,
// provisioning one with the default customer role on first login, and
// derives the authority set.
func (s *LoginService) mapToUser(ctx context.Context, claims *oidc.VerifiedClaims, userType entities.UserType) (*entities.User, []string, error) {
	// An identity without an email cannot be mapped; aborting here rather
	// than continuing with an empty principal.
	if claims.Email == "" {
		return nil, nil, fmt.Errorf("%w: no email in verified claims", ErrUserProvisioning)
	}

	user, err := s.users.GetByEmailAndType(ctx, claims.Email, userType)
	switch {
	case err == nil:
		// Existing user: authorities derive from the stored roles

	case errors.Is(err, repositories.ErrUserNotFound):
		user, err = s.provisionUser(ctx, claims.Email, userType)
		if err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrUserProvisioning, err)
	}

	return user, user.Authorities(), nil
}

// provisionUser creates a user for a first federated login. Two concurrent
// first logins can both miss the lookup; the store's uniqueness constraint
// lets exactly one insert win and the loser re-reads the winner's row.
func (s *LoginService) provisionUser(ctx context.Context, email string, userType entities.UserType) (*entities.User, error) {
	now := s.now()
	user := &entities.User{
		ID:        idgen.GenerateID(),
		Email:     email,
		Enabled:   true,
		UserType:  userType,
		Roles:     []entities.Role{entities.RoleCustomer},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.users.Create(ctx, user)
	if err == nil {
		s.log.Info("provisioned user",
			slog.String("email", email),
			slog.String("user_type", string(userType)))
		return user, nil
	}

	if errors.Is(err, repositories.ErrDuplicateUser) {
		// Lost the create race: re-read the row the winner inserted
		existing, lookupErr := s.users.GetByEmailAndType(ctx, email, userType)
		if lookupErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUserProvisioning, lookupErr)
		}
		return existing, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUserProvisioning, err)
}
