package shield

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed-window per-IP request budget.
type RateLimitConfig struct {
	// MaxRequests per Window per client IP. <=0 disables limiting.
	MaxRequests int
	// Window length. Default: 1 minute.
	Window time.Duration
	// Exclude lists path prefixes that bypass limiting (health checks).
	Exclude []string
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP fixed-window rate limiting with in-memory
// buckets. Expired buckets are garbage collected on a timer.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter. Call StartGC to enable periodic
// bucket cleanup in long-running servers.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// StartGC starts a background goroutine that drops expired buckets every
// five minutes. Stops when done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

// Middleware enforces the configured budget, answering 429 with a JSON error
// and Retry-After when the window is exhausted.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.MaxRequests <= 0 || rl.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		retryAfter, ok := rl.allow(ip)
		if !ok {
			w.Header().Set("Retry-After", retryAfter.Round(time.Second).String())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[ip]
	if b == nil || now.After(b.resetAt) {
		rl.buckets[ip] = &bucket{count: 1, resetAt: now.Add(rl.cfg.Window)}
		return 0, true
	}
	if b.count >= rl.cfg.MaxRequests {
		return time.Until(b.resetAt), false
	}
	b.count++
	return 0, true
}

func (rl *RateLimiter) excluded(path string) bool {
	for _, p := range rl.cfg.Exclude {
		if len(path) >= len(p) && path[:len(p)] == p {
			return true
		}
	}
	return false
}

func (rl *RateLimiter) gc() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
