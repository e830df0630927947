package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

const DefaultWindow = time.Minute

type ipBucket struct {
	count     int
	resetTime time.Time
}

// Limiter is a fixed-window request limiter keyed by client IP.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	limit   int
	window  time.Duration
	clock   clockwork.Clock
	stop    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing limit requests per window and client.
// A non-positive limit disables limiting.
func New(limit int, window time.Duration, clock clockwork.Clock) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		buckets: make(map[string]*ipBucket),
		limit:   limit,
		window:  window,
		clock:   clock,
		stop:    make(chan struct{}),
	}
}

// Middleware rejects clients over their limit with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.limit <= 0 {
				return next(c)
			}

			remaining, retryAfter, ok := l.allow(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				h.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}

			return next(c)
		}
	}
}

func (l *Limiter) allow(ip string) (remaining int, retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	bucket, exists := l.buckets[ip]
	if !exists || !now.Before(bucket.resetTime) {
		l.buckets[ip] = &ipBucket{
			count:     1,
			resetTime: now.Add(l.window),
		}
		return l.limit - 1, 0, true
	}

	if bucket.count >= l.limit {
		return 0, bucket.resetTime.Sub(now), false
	}

	bucket.count++
	return l.limit - bucket.count, 0, true
}

// Cleanup drops buckets whose window has passed.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for ip, bucket := range l.buckets {
		if !now.Before(bucket.resetTime) {
			delete(l.buckets, ip)
		}
	}
}

// StartCleanup runs Cleanup every interval until Stop is called.
func (l *Limiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := l.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ticker.Chan():
				l.Cleanup()
			}
		}
	}()
}

// Stop ends the cleanup loop.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
