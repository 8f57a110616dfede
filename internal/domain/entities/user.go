package entities

import (
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a user account. The same email may exist once per user
// type: local credentials and each external provider are separate records.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"` // nil for federated accounts, never serialized
	Enabled      bool      `json:"enabled" db:"enabled"`
	UserType     UserType  `json:"user_type" db:"user_type"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role is a granted role: a canonical code and a display title
type Role struct {
	Code  string `json:"code" db:"role_code"`
	Title string `json:"title" db:"role_title"`
}

// Canonical roles
var (
	RoleCustomer = Role{Code: "CUSTOMER", Title: "Customer"}
	RoleAdmin    = Role{Code: "ADMIN", Title: "Administrator"}
)

// UserType tags which identity source a user record belongs to
type UserType string

const (
	UserTypeLocal  UserType = "local"
	UserTypeGoogle UserType = "google"
)

// AuthorityPrefix is prepended to role codes to form authority strings
const AuthorityPrefix = "ROLE_"

// IsLocal returns true for password-credential accounts
func (u *User) IsLocal() bool {
	return u.UserType == UserTypeLocal
}

// VerifyPassword checks a password against the stored hash. Federated
// accounts carry no hash and never authenticate by password.
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == nil {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password))
	return err == nil
}

// Authorities derives the authority set from the user's roles: one
// "ROLE_<code>" string per distinct role code, sorted for determinism.
func (u *User) Authorities() []string {
	seen := make(map[string]struct{}, len(u.Roles))
	authorities := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		authority := AuthorityPrefix + role.Code
		if _, ok := seen[authority]; ok {
			continue
		}
		seen[authority] = struct{}{}
		authorities = append(authorities, authority)
	}
	sort.Strings(authorities)
	return authorities
}
