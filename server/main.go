package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/simplesocial/simplesocial/internal/auth"
	"github.com/simplesocial/simplesocial/internal/auth/oidc"
	"github.com/simplesocial/simplesocial/internal/config"
	"github.com/simplesocial/simplesocial/internal/domain/services"
	"github.com/simplesocial/simplesocial/internal/infrastructure/database/postgres"
	"github.com/simplesocial/simplesocial/internal/pkg/idgen"
	"github.com/simplesocial/simplesocial/internal/pkg/logger"
	"github.com/simplesocial/simplesocial/migrations"
	"github.com/simplesocial/simplesocial/server/internal/handlers"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "simplesocial authentication server",
		Long:  "HTTP server providing local and Google-federated login for simplesocial",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	cmd.AddCommand(newUserCommand())

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)

	return nil
}

func runServer(configPath string) error {
	log := slog.Default().With("component", "server")
	log.Info("starting server initialization")

	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Auth.Session.SigningKey == "" {
		return fmt.Errorf("session signing key not configured")
	}
	if cfg.Auth.Google.ClientID == "" || cfg.Auth.Google.ClientSecret == "" {
		return fmt.Errorf("google client credentials not configured")
	}
	if cfg.Auth.Google.RedirectURI == "" {
		return fmt.Errorf("google redirect URI not configured")
	}

	pgConn, err := connectWithRetry(log, cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return err
	}
	defer pgConn.Close()

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pgConn.DB)

	// Resolve the provider endpoints from the issuer's discovery document;
	// an explicitly configured JWKS URL takes precedence over the discovered one.
	discoveryCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	discovery := oidc.NewDiscoveryCache(24 * time.Hour)
	doc, err := discovery.Discover(discoveryCtx, cfg.Auth.Google.Issuer)
	if err != nil {
		return fmt.Errorf("failed to discover provider endpoints: %w", err)
	}

	jwksURL := cfg.Auth.Google.JWKSURL
	if jwksURL == "" {
		jwksURL = doc.JWKSURI
	}

	verifier := oidc.NewVerifier(oidc.NewJWKSCache(jwksURL, 1*time.Hour))
	exchanger := oidc.NewExchanger(
		cfg.Auth.Google.ClientID,
		cfg.Auth.Google.ClientSecret,
		cfg.Auth.Google.RedirectURI,
		cfg.Auth.Google.Scopes,
		doc,
	)

	sessionManager := auth.NewSessionManager(cfg.Auth.Session.SigningKey, cfg.Auth.Session.Lifetime)

	loginService := services.NewLoginService(
		userRepo,
		exchanger,
		verifier,
		sessionManager,
		cfg.Auth.Google.Issuer,
		cfg.Auth.Google.ClientID,
	)

	cookieSecret := []byte(cfg.Auth.Session.CookieSecret)
	if len(cookieSecret) == 0 {
		cookieSecret = []byte(cfg.Auth.Session.SigningKey)
	}

	handler := handlers.New(loginService, sessionManager, exchanger, cookieSecret)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	return srv.Shutdown(shutdownCtx)
}

// connectWithRetry connects to PostgreSQL with exponential backoff, for
// orchestrated startups where the database comes up after the server.
func connectWithRetry(log *slog.Logger, connString string) (*postgres.Connection, error) {
	const maxRetries = 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		pgConn, err := postgres.NewConnection(connString)
		if err == nil {
			log.Info("connected to PostgreSQL")
			return pgConn, nil
		}

		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}

		log.Warn("failed to connect to PostgreSQL",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
			"retry_delay", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL")
}
