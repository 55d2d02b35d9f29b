// Package dailyhome wires the mess membership backend into a single
// embeddable instance: accounts, the join-request state machine and the
// realtime gateway.
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/dailyhome?sslmode=disable")
//
//	app, err := dailyhome.New(dailyhome.Config{
//	    DB:        db,
//	    Migrate:   true,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	http.ListenAndServe(":8080", app.Handler())
//
// Without a DB the instance keeps everything in memory.
package dailyhome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/config"
	httpserver "github.com/tendant/dailyhome/internal/http"
	"github.com/tendant/dailyhome/internal/http/middleware"
	"github.com/tendant/dailyhome/internal/notification"
	"github.com/tendant/dailyhome/internal/realtime"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/mess"
	"github.com/tendant/dailyhome/pkg/repository"
	"github.com/tendant/dailyhome/pkg/repository/memory"
)

// Config holds the configuration of an instance.
type Config struct {
	// DB is the Postgres connection. Nil selects the in-memory store.
	DB *sql.DB

	// Migrate applies the embedded schema on New. Without it the schema
	// must already exist.
	Migrate bool

	// JWTSecret signs access tokens (required).
	JWTSecret string

	// JWTIssuer is the issuer claim in access tokens (default: "dailyhome").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 30 days).
	AccessTokenTTL time.Duration

	// OTPTTL is the lifetime of a verification code (default: 3 minutes).
	OTPTTL time.Duration

	// Sender delivers verification codes (default: written to the log).
	Sender auth.CodeSender

	Email    auth.EmailRules
	Password auth.PasswordPolicy

	Realtime        realtime.HandlerConfig
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CookieSecure    bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// App is a running backend instance.
type App struct {
	config   Config
	hub      *realtime.Hub
	tokens   *auth.TokenService
	accounts *auth.AccountService
	mess     *mess.Service
	handler  http.Handler
}

// New creates an instance. With a DB and no Migrate it fails when the
// schema is missing.
func New(cfg Config) (*App, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	var (
		store mess.Store
		users auth.UserStore
	)
	if cfg.DB != nil {
		if cfg.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := repository.Migrate(ctx, cfg.DB); err != nil {
				return nil, fmt.Errorf("dailyhome: migrate: %w", err)
			}
		} else if err := validateSchema(cfg.DB); err != nil {
			return nil, err
		}
		store, users = repository.NewStore(cfg.DB), repository.NewUsersRepository(cfg.DB)
	} else {
		mem := memory.NewStore()
		store, users = mem, mem.Users()
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	})
	accounts := auth.NewAccountService(
		auth.AccountConfig{Email: cfg.Email, Password: cfg.Password},
		users,
		tokens,
		auth.NewOTPService(auth.OTPConfig{Issuer: cfg.JWTIssuer, TTL: cfg.OTPTTL}),
		cfg.Sender,
		cfg.Logger,
	)

	hub := realtime.NewHub(cfg.Logger)
	service := mess.NewService(store, mess.Config{
		Publisher: hub,
		Presence:  hub,
		Rooms:     hub,
		Logger:    cfg.Logger,
	})

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          cfg.Logger,
		Accounts:        accounts,
		Tokens:          tokens,
		Mess:            service,
		Realtime:        realtime.NewHandler(hub, tokens, accounts, cfg.Realtime, cfg.Logger),
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		TokenTTL:        cfg.AccessTokenTTL,
		CookieSecure:    cfg.CookieSecure,
	})

	return &App{
		config:   cfg,
		hub:      hub,
		tokens:   tokens,
		accounts: accounts,
		mess:     service,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler serving /health, /v1/auth, /v1/me,
// /v1/mess and the /v1/ws gateway.
func (a *App) Handler() http.Handler {
	return a.handler
}

// MessService returns the membership service for advanced usage.
func (a *App) MessService() *mess.Service {
	return a.mess
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(app.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (a *App) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(a.tokens, a.accounts)
}

// GetUserIDFromContext extracts the user ID from a context.
// Use after AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// ConnectedUsers lists the users holding realtime connections.
func (a *App) ConnectedUsers() []realtime.ConnectedUser {
	return a.hub.ConnectedUsers()
}

// Close drops every realtime connection. The DB stays open.
func (a *App) Close() {
	a.hub.Close()
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("dailyhome: JWTSecret is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "dailyhome"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.OTPTTL == 0 {
		cfg.OTPTTL = auth.DefaultOTPTTL
	}
	if cfg.Password.MinLength == 0 {
		cfg.Password.MinLength = auth.DefaultPasswordMinLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Sender == nil {
		cfg.Sender = notification.NewLogSender(cfg.Logger)
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "messes", "mess_members", "join_requests", "members"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("dailyhome: missing table '%s' - set Migrate or apply pkg/repository/schema.sql", table)
		}
		if err != nil {
			return fmt.Errorf("dailyhome: failed to check schema: %w", err)
		}
	}

	return nil
}
