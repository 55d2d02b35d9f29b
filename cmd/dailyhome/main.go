package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/dailyhome"
	"github.com/tendant/dailyhome/internal/config"
	"github.com/tendant/dailyhome/internal/notification"
	"github.com/tendant/dailyhome/internal/realtime"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// Connect to database unless running in memory
	var db *sql.DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		db, err = repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("connected to database")
	} else {
		logger.Warn("using in-memory store, data is lost on restart")
	}

	// Verification codes go out by mail when SMTP is configured
	var sender auth.CodeSender
	if cfg.HasSMTP() {
		sender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			CodeTTL:  cfg.OTPTTL,
		})
		logger.Info("email service enabled")
	} else {
		logger.Warn("SMTP not configured, verification codes are written to the log")
	}

	app, err := dailyhome.New(dailyhome.Config{
		DB:             db,
		Migrate:        cfg.DBMigrate,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
		OTPTTL:         cfg.OTPTTL,
		Sender:         sender,
		Email: auth.EmailRules{
			Strict:          cfg.Validation.StrictEmailValidation,
			BlockDisposable: cfg.Validation.BlockDisposableEmail,
		},
		Password: auth.PasswordPolicy{
			MinLength:        cfg.PasswordPolicy.MinLength,
			RequireUppercase: cfg.PasswordPolicy.RequireUppercase,
			RequireLowercase: cfg.PasswordPolicy.RequireLowercase,
			RequireNumber:    cfg.PasswordPolicy.RequireNumber,
			RequireSpecial:   cfg.PasswordPolicy.RequireSpecial,
		},
		Realtime: realtime.HandlerConfig{
			AuthTimeout: cfg.Realtime.AuthTimeout,
			SendBuffer:  cfg.Realtime.SendBuffer,
		},
		RateLimit:       cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CookieSecure:    cfg.CookieSecure,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout. Shutdown does not track hijacked
	// websocket connections, so the hub closes them first.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.Close()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
