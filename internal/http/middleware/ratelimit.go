package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/dailyhome/internal/config"
	"github.com/tendant/dailyhome/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
	// KeyFuncs pick the bucket of a request. Defaults to the client IP.
	KeyFuncs []httprate.KeyFunc
}

// RateLimiters are the limiters of each route group.
type RateLimiters struct {
	// Auth guards the unauthenticated account endpoints, keyed by IP.
	Auth func(http.Handler) http.Handler
	// API guards authenticated endpoints, keyed by user. Must run after Auth.
	API func(http.Handler) http.Handler
}

// RateLimit creates a rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFuncs := cfg.KeyFuncs
	if len(keyFuncs) == 0 {
		keyFuncs = []httprate.KeyFunc{httprate.KeyByIP}
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(keyFuncs...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// KeyByUser buckets authenticated requests by user, falling back to the IP.
func KeyByUser(r *http.Request) (string, error) {
	if id, ok := GetUserID(r.Context()); ok {
		return "user:" + id.String(), nil
	}
	return httprate.KeyByIP(r)
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) RateLimiters {
	if !cfg.Enabled {
		return RateLimiters{Auth: NoRateLimit(), API: NoRateLimit()}
	}

	return RateLimiters{
		Auth: RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequestsPerMinute,
			Window:   time.Minute,
			Logger:   logger,
		}),
		API: RateLimit(RateLimitConfig{
			Requests: cfg.APIRequestsPerMinute,
			Window:   time.Minute,
			Logger:   logger,
			KeyFuncs: []httprate.KeyFunc{KeyByUser},
		}),
	}
}
