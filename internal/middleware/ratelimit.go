package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/metrics"
	"idees/internal/ratelimit"
	"idees/internal/services"
	"idees/internal/utils"
)

const msgRateLimited = "Too many attempts. Please try again later."

// Limits hands out per-action rate limiting middleware.
type Limits struct {
	Limiter    ratelimit.Limiter
	Policies   map[string]ratelimit.Policy
	TrustProxy bool
	Metrics    *metrics.Metrics
	Log        logger.Logger
}

// For limits requests by client IP under the policy of action. A limiter
// failure lets the request through.
func (l *Limits) For(action string) gin.HandlerFunc {
	policy, ok := l.Policies[action]
	if !ok {
		policy = ratelimit.DefaultPolicies[action]
	}
	return func(c *gin.Context) {
		ip := utils.ClientIP(c.Request, l.TrustProxy)
		res, err := l.Limiter.Check(c.Request.Context(), ratelimit.Key(action, ip), policy)
		if err != nil {
			l.Log.Error("rate limit check", logger.String("action", action), logger.Err(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed {
			c.Next()
			return
		}

		l.Metrics.RateLimited(action)
		c.Header("Retry-After", strconv.Itoa(retryAfter(res.ResetIn)))
		if action == ratelimit.ActionVote {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, services.RateLimitedVote())
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": msgRateLimited})
	}
}

// retryAfter rounds up to whole seconds, never below one.
func retryAfter(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
