package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipRateLimiter struct {
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
	lastSeen      map[string]time.Time
	r             rate.Limit
	burst         int
	evictTTL      time.Duration
	opCount       int
	cleanupEveryN int
}

func newIPRateLimiter(r rate.Limit, burst int, evictTTL time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		lastSeen:      make(map[string]time.Time),
		r:             r,
		burst:         burst,
		evictTTL:      evictTTL,
		cleanupEveryN: 64,
	}
}

// Allow reports whether key is within its rate limit.
func (l *ipRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = limiter
	}
	l.lastSeen[key] = now
	l.maybeCleanupLocked(now)
	return limiter.AllowN(now, 1)
}

// retryAfter estimates how long key must wait for its next token.
func (l *ipRateLimiter) retryAfter() time.Duration {
	if l == nil || l.r <= 0 {
		return time.Second
	}
	wait := time.Duration(float64(time.Second) / float64(l.r))
	if wait < time.Second {
		return time.Second
	}
	return wait
}

func (l *ipRateLimiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount < l.cleanupEveryN {
		return
	}
	l.opCount = 0
	cutoff := now.Add(-l.evictTTL)
	for key, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

func (s *Server) allowSubmit(w http.ResponseWriter, r *http.Request) bool {
	if s.submitLimiter.Allow(clientIP(r), time.Now()) {
		return true
	}
	wait := s.submitLimiter.retryAfter()
	w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
	s.fail(w, r, rateLimited(fmt.Errorf("submit rate limit exceeded")))
	return false
}
