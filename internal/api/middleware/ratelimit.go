package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kmatsuda/textlens/internal/api/response"
	"github.com/kmatsuda/textlens/internal/cache"
)

const (
	defaultRequestsPerMinute = 60
	tokenPrefixLen           = 8
)

// RateLimit provides sliding-window rate limiting via Redis, keyed by a
// prefix of the presented token. Identities without a stored token (the
// admin-secret bypass, anonymous requests) pass through unkeyed.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting based on the identity set by auth middleware.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetIdentity(r)
		if id.Token == nil || len(id.Token.Value) < tokenPrefixLen {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(id.Token.Value[:tokenPrefixLen])
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetTime := time.Now().Add(60 * time.Second).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
