package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/tripjournal/service-trips/internal/common/response"
)

// maxTrackedKeys bounds how many per-key limiters are kept. The least recently seen key
// is evicted first and simply starts with a full bucket when it returns.
const maxTrackedKeys = 10000

// UserRateLimiter hands out one token bucket per authenticated user, falling back to the
// client IP for anonymous requests.
type UserRateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewUserRateLimiter allows perSecond requests per key with the given burst.
func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	cache, err := lru.New[string, *rate.Limiter](maxTrackedKeys)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &UserRateLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: cache}
}

func (l *UserRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

// Middleware rejects requests over the limit with 429.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = userID.String()
		}

		if !l.limiter(key).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Envelope{
				Success: false,
				Error:   &response.ErrorBody{Code: "rate_limited", Message: "too many requests"},
			})
			return
		}
		c.Next()
	}
}
