package common

import (
	"log/slog"
	"net/http"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"
)

// RateLimit returns a middleware backed by a single token bucket shared by all
// clients of the route. A non-positive rate disables limiting.
func RateLimit(rate float64, burst int64) echo.MiddlewareFunc {
	if rate <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	if burst < 1 {
		burst = 1
	}
	limiter := ratelimit.NewBucketWithRate(rate, burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			// Check if the request is allowed by the rate limiter
			if limiter.TakeAvailable(1) == 0 {
				slog.Warn("rate limit exceeded",
					"status", http.StatusTooManyRequests,
					"route", ctx.Path(),
					"remote_ip", ctx.RealIP())
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(ctx)
		}
	}
}
