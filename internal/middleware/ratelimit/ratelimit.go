// Package ratelimit meters requests per key in fixed windows. Each request
// spends a cost from the key's budget, so expensive routes can be charged
// more than plain writes.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter tracks a spending window per key.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	hits         int64

	limit           int
	period          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

type window struct {
	start time.Time
	spent int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// Window overrides the one minute accounting period.
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Window:            time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision is the outcome of charging a request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		windows:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		limit:           config.RequestsPerMinute,
		period:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
	}
	go rl.startCleanup()
	return rl
}

// Allow charges one unit to key.
func (rl *Limiter) Allow(key string) bool {
	return rl.Charge(key, 1).Allowed
}

// Charge spends cost units of key's budget in the current window. Costs are
// clamped to [1, limit] so that any single request fits an empty window.
// A rejected request spends nothing.
func (rl *Limiter) Charge(key string, cost int) Decision {
	cost = min(max(cost, 1), rl.limit)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		w = &window{start: now}
		rl.windows[key] = w
	}

	if w.spent+cost > rl.limit {
		atomic.AddInt64(&rl.hits, 1)
		return Decision{
			Remaining:  rl.limit - w.spent,
			RetryAfter: w.start.Add(rl.period).Sub(now),
		}
	}
	w.spent += cost
	return Decision{Allowed: true, Remaining: rl.limit - w.spent}
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupExpired drops windows that have closed.
func (rl *Limiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.period {
			delete(rl.windows, key)
		}
	}
}

// ActiveClients returns the number of keys with an open window.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clientCount := int64(len(rl.windows))
	rl.mu.Unlock()

	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.hits),
		ClientCount: clientCount,
	}
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// RetryAfterSeconds renders d for a Retry-After header, rounding up.
func RetryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}

// Middleware charges cost(r) to extractKey(r). A nil cost charges one unit.
// X-RateLimit-Remaining is set on every metered response.
func (rl *Limiter) Middleware(
	extractKey func(*http.Request) string,
	cost func(*http.Request) int,
	onLimit func(http.ResponseWriter, *http.Request, Decision),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			units := 1
			if cost != nil {
				units = cost(r)
			}
			d := rl.Charge(extractKey(r), units)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				if onLimit != nil {
					onLimit(w, r, d)
					return
				}
				w.Header().Set("Retry-After", RetryAfterSeconds(d.RetryAfter))
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
