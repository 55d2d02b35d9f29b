package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/dailyhome/internal/config"
	"github.com/tendant/dailyhome/internal/http/features/account"
	"github.com/tendant/dailyhome/internal/http/features/me"
	messfeature "github.com/tendant/dailyhome/internal/http/features/mess"
	"github.com/tendant/dailyhome/internal/http/middleware"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/mess"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Accounts        *auth.AccountService
	Tokens          *auth.TokenService
	Mess            *mess.Service
	Realtime        http.Handler // nil disables /v1/ws
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	TokenTTL        time.Duration
	CookieSecure    bool // Whether to use Secure flag on cookies (should be true for HTTPS)
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	// Account routes
	accountHandler := account.NewHandler(cfg.Logger, cfg.Accounts, cfg.TokenTTL, cookieConfig)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters.Auth)
		accountHandler.RegisterRoutes(r)
	})

	// Authenticated API
	meHandler := me.NewHandler(cfg.Logger, cfg.Accounts, cfg.Mess)
	messHandler := messfeature.NewHandler(cfg.Logger, cfg.Mess)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens, cfg.Accounts))
		r.Use(rateLimiters.API)
		meHandler.RegisterRoutes(r)
		messHandler.RegisterRoutes(r)
	})

	// Realtime gateway authenticates during the handshake
	if cfg.Realtime != nil {
		r.Method(http.MethodGet, "/v1/ws", cfg.Realtime)
	}

	return r
}
