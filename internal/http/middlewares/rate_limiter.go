package middlewares

import (
	"log/slog"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/http/httperr"
	"github.com/geocoder89/accounts/internal/ratelimit"
)

const MsgTooManyRequests = "Too many requests from this IP, please try again in an hour!"

type RateLimiter struct {
	counter ratelimit.Counter
	limit   int64
	window  time.Duration
}

func NewRateLimiter(counter ratelimit.Counter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
	}
}

// RateLimiterMiddleware enforces the limit for the key keyFn derives, falling back to the
// client IP. When the counter store fails the request is let through.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = KeyByIP(c)
		}

		count, resetIn, err := rl.counter.Hit(c.Request.Context(), key, rl.window)
		if err != nil {
			slog.Default().WarnContext(c.Request.Context(), "rate_limit_unavailable", "err", err)
			c.Next()
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.Itoa(seconds(resetIn)))

		if count > rl.limit {
			c.Header("Retry-After", strconv.Itoa(seconds(resetIn)))
			httperr.Abort(c, apperr.RateLimited(MsgTooManyRequests))
			return
		}

		c.Next()
	}
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// KeyByIP limits unauthenticated traffic per client address.
func KeyByIP(c *gin.Context) string {
	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP for trusted proxies.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}
