package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/simplesocial/simplesocial/internal/config"
	"github.com/simplesocial/simplesocial/internal/domain/entities"
	"github.com/simplesocial/simplesocial/internal/infrastructure/database/postgres"
	"github.com/simplesocial/simplesocial/internal/pkg/idgen"
	"github.com/simplesocial/simplesocial/migrations"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Commands for managing local users in the simplesocial database",
	}

	cmd.AddCommand(newUserCreateCommand())

	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var (
		email      string
		password   string
		admin      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new local user",
		Long:  "Create a local user with the given email and password; prompts for the password when not flagged",
		Example: `  # Create an admin user, prompting for the password
  server user create --email admin@example.com --admin

  # Create a regular user
  server user create --email user@example.com --password secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createUser(configPath, email, password, admin)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&password, "password", "", "User password (prompted when omitted)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin role in addition to customer")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.MarkFlagRequired("email")

	return cmd
}

func createUser(configPath, email, password string, admin bool) error {
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	pgConn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	defer pgConn.Close()

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pgConn.DB)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	roles := []entities.Role{entities.RoleCustomer}
	if admin {
		roles = append(roles, entities.RoleAdmin)
	}

	hashedPasswordStr := string(hashedPassword)
	user := &entities.User{
		ID:           idgen.GenerateID(),
		Email:        email,
		PasswordHash: &hashedPasswordStr,
		Enabled:      true,
		UserType:     entities.UserTypeLocal,
		Roles:        roles,
	}

	if err := userRepo.Create(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(passwordBytes), nil
}
