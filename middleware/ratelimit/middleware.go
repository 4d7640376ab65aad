package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	Clock          clock.Clock
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	cfg.Clock = clock.OrReal(cfg.Clock)

	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.Clock)
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = KeyByIP("rate_limit")
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)
			now := cfg.Clock.Now()
			resetTime := now.Add(cfg.Period)

			count, existingResetTime, exists := cfg.Store.Get(key)
			if exists {
				resetTime = existingResetTime
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Rate))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if count >= cfg.Rate {
				header.Set("X-RateLimit-Remaining", "0")
				header.Set("Retry-After", strconv.Itoa(retryAfter(now, resetTime)))

				if cfg.Logger != nil {
					cfg.Logger.Warn("rate limit reached",
						zap.String("key", key),
						zap.String("path", c.Path()))
				}
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == config.CountAll {
				count = cfg.Store.Increment(key, resetTime)
				header.Set("X-RateLimit-Remaining", strconv.Itoa(max(cfg.Rate-count, 0)))
				return next(c)
			}

			header.Set("X-RateLimit-Remaining", strconv.Itoa(max(cfg.Rate-count-1, 0)))

			err := next(c)

			status := responseStatus(c, err)
			shouldCount := false
			switch cfg.CountMode {
			case config.CountFailures:
				shouldCount = status >= http.StatusBadRequest
			case config.CountSuccess:
				shouldCount = status < http.StatusBadRequest
			}

			if shouldCount {
				cfg.Store.Increment(key, resetTime)
			}

			return err
		}
	}
}

// responseStatus is the status the client will see. A handler error has not
// been written yet when the middleware regains control, so it is read from
// the error itself.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

func retryAfter(now, resetTime time.Time) int {
	seconds := int(resetTime.Sub(now).Round(time.Second) / time.Second)
	return max(seconds, 1)
}

// KeyByIP buckets requests by client IP under prefix.
func KeyByIP(prefix string) func(c echo.Context) string {
	return func(c echo.Context) string {
		realIP := c.RealIP()
		if realIP == "" || realIP == "unknown" {
			realIP = "fallback"
		}
		return prefix + ":" + realIP
	}
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
}

// AdminLogin limits administrator login attempts per client IP using the
// RATE_LIMIT_ADMIN_* settings.
func AdminLogin(cfg *config.Config, store Store, clk clock.Clock, logger *logging.Service) echo.MiddlewareFunc {
	return Middleware(&Config{
		Store:        store,
		Rate:         cfg.RateLimit.AdminRate,
		Period:       cfg.RateLimit.AdminPeriod,
		CountMode:    cfg.RateLimit.AdminCount,
		Clock:        clk,
		KeyGenerator: KeyByIP("admin_login"),
		Logger:       logger,
	})
}

func NewStore(rateLimitConfig *config.RateLimitConfig, clk clock.Clock) Store {
	switch rateLimitConfig.Store {
	case "memory":
		fallthrough
	default:
		return NewMemoryStore(clk)
	}
}
