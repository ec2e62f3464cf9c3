package auth

import (
	"sync"
	"time"
)

type rateLimitWindow struct {
	count    int
	firstTry time.Time
}

// LoginRateLimiter implements in-memory per-IP rate limiting for login
// attempts. Successful logins reset the caller's window.
type LoginRateLimiter struct {
	attempts map[string]*rateLimitWindow
	mu       sync.Mutex

	maxAttempts int
	window      time.Duration
}

// NewLoginRateLimiter creates a rate limiter allowing maxAttempts login
// attempts per IP within the given window.
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	limiter := &LoginRateLimiter{
		attempts:    make(map[string]*rateLimitWindow),
		maxAttempts: maxAttempts,
		window:      window,
	}

	go limiter.cleanupLoop()

	return limiter
}

// Allow reports whether a login attempt from ip may proceed and counts
// the attempt.
func (l *LoginRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	attempt, exists := l.attempts[ip]

	if !exists || now.Sub(attempt.firstTry) > l.window {
		l.attempts[ip] = &rateLimitWindow{count: 1, firstTry: now}
		return true
	}

	if attempt.count >= l.maxAttempts {
		return false
	}

	attempt.count++
	return true
}

// Reset clears the window for ip after a successful login.
func (l *LoginRateLimiter) Reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, ip)
}

func (l *LoginRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for ip, attempt := range l.attempts {
			if now.Sub(attempt.firstTry) > l.window {
				delete(l.attempts, ip)
			}
		}
		l.mu.Unlock()
	}
}
