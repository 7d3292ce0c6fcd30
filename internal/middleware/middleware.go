package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
)

// RequestIDKey is the context key and response header carrying the request id
const RequestIDKey = "X-Request-ID"

// RequestID tags every request with an id, keeping one sent by the client
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDKey, id)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []interface{}{
			"requestId", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"clientIp", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request", args...)
		case status >= http.StatusBadRequest:
			log.Warn("Request", args...)
		default:
			log.Info("Request", args...)
		}
	}
}

// Recovery converts panics into 500 responses
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered",
					"requestId", c.GetString(RequestIDKey),
					"path", c.Request.URL.Path,
					"panic", r,
					"stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					ErrorBody(apperrors.CodeInternal, "internal server error", nil))
			}
		}()
		c.Next()
	}
}

// CORSMiddleware allows the configured origins
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDKey},
		ExposeHeaders:    []string{"Content-Length", RequestIDKey},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	}
	return cors.New(config)
}

// OriginChecker accepts requests whose Origin is in allowedOrigins.
// An empty list accepts any origin, matching CORSMiddleware.
func OriginChecker(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// UserRateLimiter manages one token bucket per caller
type UserRateLimiter struct {
	keys  map[string]*rateLimiterEntry
	mu    sync.Mutex
	r     rate.Limit
	burst int
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter creates a limiter allowing r requests per second with the given burst
func NewUserRateLimiter(r rate.Limit, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		keys:  make(map[string]*rateLimiterEntry),
		r:     r,
		burst: burst,
	}
}

// GetLimiter returns the rate limiter for key
func (rl *UserRateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.keys[key]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.keys[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Cleanup drops limiters idle for longer than maxIdle
func (rl *UserRateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.keys {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(rl.keys, key)
		}
	}
}

// StartCleanup runs Cleanup every minute until ctx is done
func (rl *UserRateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(3 * time.Minute)
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated user, falling back to the client IP
func RateLimitMiddleware(limiter *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if p, ok := PrincipalFrom(c); ok {
			key = p.UserID.Hex()
		}

		if !limiter.GetLimiter(key).Allow() {
			slog.Warn("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				ErrorBody(CodeRateLimited, "Rate limit exceeded. Please slow down.", nil))
			return
		}
		c.Next()
	}
}
