package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// RateLimitConfig limits requests per signer. With Redis the limit is a fixed window
// shared by every gateway instance; without it each instance keeps token buckets.
type RateLimitConfig struct {
	Redis          *redis.Client
	DefaultRPS     int           // used when the signer has no rate_limit_rps
	Burst          int           // token bucket size for the in-process limiter
	KeyPrefix      string        // e.g. "rl:signer:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool
}

// RateLimitMiddleware expects the signer set by APIKeyMiddleware.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:signer:"
	}
	local := newBuckets(cfg.Burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			signer, ok := SignerFromCtx(c)
			if !ok {
				return next(c)
			}

			max := cfg.DefaultRPS
			if m, ok := c.Get(ctxSignerRPS).(int); ok && m > 0 {
				max = m
			}
			if max <= 0 {
				return next(c)
			}

			now := time.Now()
			var limited bool
			if cfg.Redis != nil {
				// fixed-window key: rl:signer:{id}:{unix_sec}
				key := cfg.KeyPrefix + signer.String() + ":" + strconv.FormatInt(now.Unix(), 10)
				ctx := c.Request().Context()

				pipe := cfg.Redis.Pipeline()
				cnt := pipe.Incr(ctx, key)
				pipe.Expire(ctx, key, cfg.Window*2)
				if _, err := pipe.Exec(ctx); err != nil {
					// redis unavailable: fall back to this instance's buckets
					limited = !local.allow(signer, max, now)
				} else {
					limited = cnt.Val() > int64(max)
				}
			} else {
				limited = !local.allow(signer, max, now)
			}

			if limited {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					secs := int(remain.Round(time.Second) / time.Second)
					if secs < 1 {
						secs = 1
					}
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}

type bucket struct {
	lim *rate.Limiter
	rps int
}

// buckets keeps one token bucket per signer.
type buckets struct {
	mu    sync.Mutex
	burst int
	m     map[identity.ID]*bucket
}

func newBuckets(burst int) *buckets {
	return &buckets{burst: burst, m: make(map[identity.ID]*bucket)}
}

func (b *buckets) allow(signer identity.ID, rps int, now time.Time) bool {
	b.mu.Lock()
	bk, ok := b.m[signer]
	if !ok || bk.rps != rps {
		burst := b.burst
		if burst < rps {
			burst = rps
		}
		bk = &bucket{lim: rate.NewLimiter(rate.Limit(rps), burst), rps: rps}
		b.m[signer] = bk
	}
	b.mu.Unlock()
	return bk.lim.AllowN(now, 1)
}
