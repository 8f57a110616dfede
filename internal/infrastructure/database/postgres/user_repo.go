package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/simplesocial/simplesocial/internal/domain/entities"
	"github.com/simplesocial/simplesocial/internal/domain/repositories"
	"github.com/simplesocial/simplesocial/internal/pkg/idgen"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations
const pqUniqueViolation = "23505"

// UserRepository implements repositories.UserRepository for PostgreSQL
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	Enabled      bool           `db:"enabled"`
	UserType     string         `db:"user_type"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// roleRow represents a granted role as stored in the database
type roleRow struct {
	UserID    string `db:"user_id"`
	RoleCode  string `db:"role_code"`
	RoleTitle string `db:"role_title"`
}

func (r *userRow) toEntity(roles []entities.Role) *entities.User {
	user := &entities.User{
		ID:        r.ID,
		Email:     r.Email,
		Enabled:   r.Enabled,
		UserType:  entities.UserType(r.UserType),
		Roles:     roles,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.PasswordHash.Valid {
		user.PasswordHash = &r.PasswordHash.String
	}

	return user
}

func userRowFromEntity(user *entities.User) *userRow {
	row := &userRow{
		ID:        user.ID,
		Email:     user.Email,
		Enabled:   user.Enabled,
		UserType:  string(user.UserType),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	if user.PasswordHash != nil {
		row.PasswordHash = sql.NullString{String: *user.PasswordHash, Valid: true}
	}

	return row
}

// Create inserts a user and its roles in one transaction. A collision on the
// (email, user_type) constraint surfaces as repositories.ErrDuplicateUser.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.ID == "" {
		user.ID = idgen.GenerateID()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.log.Debug("creating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
		slog.String("user_type", string(user.UserType)))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO users (id, email, password_hash, enabled, user_type, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :enabled, :user_type, :created_at, :updated_at)`

	if _, err := tx.NamedExecContext(ctx, query, userRowFromEntity(user)); err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	roleQuery := `INSERT INTO user_roles (user_id, role_code, role_title)
		VALUES (:user_id, :role_code, :role_title)`

	for _, role := range user.Roles {
		row := roleRow{UserID: user.ID, RoleCode: role.Code, RoleTitle: role.Title}
		if _, err := tx.NamedExecContext(ctx, roleQuery, row); err != nil {
			return fmt.Errorf("failed to create user role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrDuplicateUser
		}
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	return nil
}

// GetByEmailAndType retrieves a user, roles included, by email and identity source
func (r *UserRepository) GetByEmailAndType(ctx context.Context, email string, userType entities.UserType) (*entities.User, error) {
	var row userRow
	query := `SELECT id, email, password_hash, enabled, user_type, created_at, updated_at
		FROM users WHERE email = $1 AND user_type = $2`

	err := r.db.GetContext(ctx, &row, query, email, string(userType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	roles, err := r.rolesForUser(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	return row.toEntity(roles), nil
}

// GetRolesByEmail returns the roles held by any account with the given email
func (r *UserRepository) GetRolesByEmail(ctx context.Context, email string) ([]entities.Role, error) {
	var rows []roleRow
	query := `SELECT ur.user_id, ur.role_code, ur.role_title
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE u.email = $1`

	if err := r.db.SelectContext(ctx, &rows, query, email); err != nil {
		return nil, fmt.Errorf("failed to get roles by email: %w", err)
	}

	return rolesFromRows(rows), nil
}

func (r *UserRepository) rolesForUser(ctx context.Context, userID string) ([]entities.Role, error) {
	var rows []roleRow
	query := `SELECT user_id, role_code, role_title FROM user_roles WHERE user_id = $1`

	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}

	return rolesFromRows(rows), nil
}

func rolesFromRows(rows []roleRow) []entities.Role {
	roles := make([]entities.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, entities.Role{Code: row.RoleCode, Title: row.RoleTitle})
	}
	return roles
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
