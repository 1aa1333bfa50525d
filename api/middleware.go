package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestID tags every response so log lines can be correlated with
// client reports.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string]*clientWindow
}

type clientWindow struct {
	count    int
	lastSeen time.Time
}

const (
	maxRequests    = 100
	windowDuration = 5 * time.Minute
)

var limiter = &rateLimiter{requests: make(map[string]*clientWindow)}

// RateLimit applies a fixed-window per-IP limit to the API routes.
func RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr

		limiter.mu.Lock()

		now := time.Now()
		for ip, win := range limiter.requests {
			if now.Sub(win.lastSeen) > windowDuration {
				delete(limiter.requests, ip)
			}
		}

		win, ok := limiter.requests[clientIP]
		if !ok || now.Sub(win.lastSeen) > windowDuration {
			win = &clientWindow{}
			limiter.requests[clientIP] = win
		}

		if win.count >= maxRequests {
			win.lastSeen = now
			limiter.mu.Unlock()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			w.Header().Set("X-RateLimit-Remaining", "0")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		win.count++
		win.lastSeen = now
		remaining := maxRequests - win.count
		limiter.mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}
