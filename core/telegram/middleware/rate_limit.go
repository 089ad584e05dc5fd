package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/time/rate"

	"github.com/m3rciful/referralbot/core/logger"
	tghelpers "github.com/m3rciful/referralbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	limiterCapacity = 10_000
	limiterIdleTTL  = 10 * time.Minute
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the average spacing allowed between updates of one user.
	Interval time.Duration
	// Burst is the number of updates accepted back to back; values below 1 mean 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// limiterSet keeps one token bucket per user. Idle buckets expire from the cache.
type limiterSet struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	cache otter.Cache[int64, *rate.Limiter]
}

func newLimiterSet(interval time.Duration, burst int) *limiterSet {
	if burst < 1 {
		burst = 1
	}
	cache, err := otter.MustBuilder[int64, *rate.Limiter](limiterCapacity).
		WithTTL(limiterIdleTTL).
		Build()
	if err != nil {
		panic(err)
	}
	return &limiterSet{every: rate.Every(interval), burst: burst, cache: cache}
}

func (s *limiterSet) allow(userID int64) bool {
	s.mu.Lock()
	lim, ok := s.cache.Get(userID)
	if !ok {
		lim = rate.NewLimiter(s.every, s.burst)
	}
	// Re-set refreshes the idle TTL.
	s.cache.Set(userID, lim)
	s.mu.Unlock()
	return lim.Allow()
}

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that throttles updates per user
// with a token bucket refilled once per Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	limiters := newLimiterSet(opts.Interval, opts.Burst)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if limiters.allow(user.ID) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("update_kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
