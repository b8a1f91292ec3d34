package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// originPolicy is the web_cors_origins allow-list. Empty allows any origin.
type originPolicy map[string]bool

func newOriginPolicy(origins []string) originPolicy {
	p := make(originPolicy, len(origins))
	for _, o := range origins {
		p[strings.ToLower(strings.TrimSpace(o))] = true
	}
	return p
}

func (p originPolicy) allowed(origin string) bool {
	return len(p) == 0 || p[strings.ToLower(origin)]
}

// checkOrigin is the websocket upgrader's origin test. Requests without
// an Origin header (non-browser clients) always pass.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.allowed(origin)
}

// corsMiddleware answers preflights and adds CORS headers for allowed origins.
// The API is read-only, so only GET is advertised.
func corsMiddleware(policy originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && policy.allowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed one-minute window per client IP.
// A limit of zero or less disables it.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	counts map[string]*rateWindow
}

type rateWindow struct {
	hits  int
	reset time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		limit:  perMinute,
		window: time.Minute,
		now:    time.Now,
		counts: make(map[string]*rateWindow),
	}
}

// allow records a hit for ip. When the window is exhausted it returns
// false and the time until the window resets.
func (rl *rateLimiter) allow(ip string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	win := rl.counts[ip]
	if win == nil || !now.Before(win.reset) {
		rl.counts[ip] = &rateWindow{hits: 1, reset: now.Add(rl.window)}
		return true, 0
	}
	win.hits++
	if win.hits > rl.limit {
		return false, win.reset.Sub(now)
	}
	return true, 0
}

// cleanup forgets windows that have already reset.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, win := range rl.counts {
		if !now.Before(win.reset) {
			delete(rl.counts, ip)
		}
	}
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counts)
}

// rateLimitMiddleware answers 429 once a client exceeds web_rate_limit.
// Health checks and metric scrapes are exempt.
func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		ok, retry := rl.allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
