package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host" default:"localhost"`
	Port int    `yaml:"port" default:"8080"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"simplesocial"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Session SessionConfig `yaml:"session"`
	Google  GoogleConfig  `yaml:"google"`
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	SigningKey   string        `yaml:"signing_key"`             // Secret key for signing session tokens
	Lifetime     time.Duration `yaml:"lifetime" default:"168h"` // Default 7 days
	CookieSecret string        `yaml:"cookie_secret"`           // Secret for the OAuth state cookie store
}

// GoogleConfig holds the Google OpenID Connect client configuration.
// Issuer and ClientID double as the expected iss and aud claim values.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Issuer       string   `yaml:"issuer" default:"https://accounts.google.com"`
	JWKSURL      string   `yaml:"jwks_url,omitempty"` // Resolved via discovery when empty
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes,omitempty"` // Defaults to openid, profile, email
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
