package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guestlist/internal/i18n"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter counts requests per client in fixed one minute windows.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	log    logrus.FieldLogger
}

func NewRateLimiter(redisClient redis.Cmdable, perMinute int, log logrus.FieldLogger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(perMinute),
		window: time.Minute,
		log:    log,
	}
}

func rateKey(scope, client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, client)
}

// Allow records one request for key. It fails open when Redis is
// unreachable so an outage does not block enrollment.
func (r *RateLimiter) Allow(ctx context.Context, key string) bool {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.WithError(err).Warn("rate limiter unavailable, allowing request")
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	return count <= r.limit
}

// Middleware limits requests per client ip for the given scope.
func (r *RateLimiter) Middleware(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if !r.Allow(e.Request.Context(), rateKey(scope, e.RealIP())) {
			r.log.WithFields(logrus.Fields{"scope": scope, "ip": e.RealIP()}).Info("rate limit exceeded")
			return apis.NewTooManyRequestsError(i18n.Printer(e.Request).Sprintf(i18n.MsgTooManyRequests), nil)
		}
		return e.Next()
	}
}

// AntiBot rejects clients announcing themselves as crawlers.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError(i18n.Printer(e.Request).Sprintf(i18n.MsgAccessDenied), nil)
		}
		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
