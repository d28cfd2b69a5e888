package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Allower is the rate limiter contract. The production implementation
// counts in Redis so the budget holds across replicas; tests fake it.
type Allower interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type RateLimiter struct {
	limiter Allower
	log     *slog.Logger
}

func NewRateLimiter(limiter Allower, log *slog.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, log: log}
}

// Middleware enforces the rate limit for a derived key. A broken
// limiter backend fails open: blocking all logins because Redis is
// down would be a worse outage than briefly losing the throttle.
func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived

			key = clientIP(c)
		}

		allowed, retryAfter, err := rl.limiter.Allow(c.Request.Context(), key)

		if err != nil {
			rl.log.Warn("rate limiter unavailable, allowing request", "err", err)
			c.Next()
			return
		}

		if !allowed {
			seconds := int(retryAfter.Seconds())

			if seconds < 1 {
				seconds = 1
			}

			c.Header("Retry-After", strconv.Itoa(seconds))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests. Please try again shortly.",
				},
			})

			return
		}

		c.Next()
	}
}

// helper functions

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available

func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
