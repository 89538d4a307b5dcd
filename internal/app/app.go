package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kidnector/internal/backend"
	"kidnector/internal/config"
	"kidnector/internal/database"
	"kidnector/internal/repository"
	"kidnector/internal/security"
	"kidnector/internal/service"
	"kidnector/internal/session"
)

// App holds the wired services of one process
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *database.DB
	Client *backend.Client

	Auth        *service.AuthService
	Family      *service.FamilyService
	Completions *service.CompletionService
	Session     *session.Provider
}

// LoadConfig reads .env when present and then the environment
func LoadConfig() (*config.Config, error) {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// New opens the local store and wires the backend client, repositories and services
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	client, err := backend.New(cfg.SupabaseURL, cfg.SupabaseAnonKey,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		backend.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Debug("local store ready", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = fallbackSecret()
		logger.Warn("KIDNECTOR_SESSION_SECRET not set, deriving the session key from the host name")
	}
	sealer, err := security.NewSealer(secret)
	if err != nil {
		db.Close()
		return nil, err
	}

	email, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Initialize repositories
	familyRepo := repository.NewFamilyRepository(client)
	childRepo := repository.NewChildRepository(client)
	affirmationRepo := repository.NewAffirmationRepository(client)
	customRepo := repository.NewCustomAffirmationRepository(client)
	completionRepo := repository.NewCompletionRepository(client)
	pushRepo := repository.NewPushTokenRepository(client)
	sessionRepo := repository.NewSessionRepository(db, sealer)

	// Initialize services
	authService := service.NewAuthService(client, familyRepo, sessionRepo, email, logger)
	familyService := service.NewFamilyService(client, familyRepo, childRepo, customRepo, pushRepo, logger)
	completionService := service.NewCompletionService(client, childRepo, familyRepo, affirmationRepo, completionRepo, email, cfg.RecordingsBucket, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Client:      client,
		Auth:        authService,
		Family:      familyService,
		Completions: completionService,
		Session:     session.NewProvider(client.Auth(), familyService, logger),
	}, nil
}

// Close releases the local store
func (a *App) Close() error {
	return a.DB.Close()
}

func fallbackSecret() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return "kidnector:" + host
}
