package repositories

import (
	"context"

	"github.com/simplesocial/simplesocial/internal/domain/entities"
)

// UserRepository defines the persistence surface consumed by the login flows
type UserRepository interface {
	// Create inserts a new user together with its roles. A user is never
	// created with zero roles. Returns ErrDuplicateUser when the
	// (email, user_type) uniqueness constraint is violated.
	Create(ctx context.Context, user *entities.User) error

	// GetByEmailAndType retrieves a user, roles included, by email and
	// identity source. Returns ErrUserNotFound when no record matches.
	GetByEmailAndType(ctx context.Context, email string, userType entities.UserType) (*entities.User, error)

	// GetRolesByEmail returns the roles held by any account with the given email
	GetRolesByEmail(ctx context.Context, email string) ([]entities.Role, error)
}
