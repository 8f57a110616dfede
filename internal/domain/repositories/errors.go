package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when an insert collides with the
	// (email, user_type) uniqueness constraint
	ErrDuplicateUser = errors.New("user already exists")
)
