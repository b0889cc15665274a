package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type attemptData struct {
	count        int
	firstAttempt time.Time
}

// rateLimiter blocks an IP for block once it records limit failures inside
// window.
type rateLimiter struct {
	sync.Mutex
	attempts map[string]*attemptData
	blocked  map[string]time.Time

	limit  int
	window time.Duration
	block  time.Duration
	now    func() time.Time
}

const (
	maxAttempts    = 5
	blockDuration  = 15 * time.Minute
	windowDuration = 15 * time.Minute

	// maxTracked caps the attempts map.
	maxTracked = 10000
)

func newRateLimiter(limit int, window, block time.Duration) *rateLimiter {
	return &rateLimiter{
		attempts: make(map[string]*attemptData),
		blocked:  make(map[string]time.Time),
		limit:    limit,
		window:   window,
		block:    block,
		now:      time.Now,
	}
}

// Allow returns false if the IP is currently blocked.
// It also cleans up expired blocks.
func (r *rateLimiter) Allow(ip string) bool {
	r.Lock()
	defer r.Unlock()

	if unblockTime, ok := r.blocked[ip]; ok {
		if r.now().Before(unblockTime) {
			return false
		}
		delete(r.blocked, ip)
		delete(r.attempts, ip)
	}
	return true
}

// RecordFailure increments the failure count and blocks if threshold reached.
func (r *rateLimiter) RecordFailure(ip string) {
	r.Lock()
	defer r.Unlock()

	now := r.now()
	if len(r.attempts) > maxTracked {
		for k, data := range r.attempts {
			if now.Sub(data.firstAttempt) > r.window {
				delete(r.attempts, k)
			}
		}
	}

	data, exists := r.attempts[ip]
	if !exists || now.Sub(data.firstAttempt) > r.window {
		data = &attemptData{firstAttempt: now}
		r.attempts[ip] = data
	}
	data.count++
	if data.count >= r.limit {
		r.blocked[ip] = now.Add(r.block)
	}
}

// Reset clears the counter for an IP (used on successful login).
func (r *rateLimiter) Reset(ip string) {
	r.Lock()
	defer r.Unlock()
	delete(r.attempts, ip)
	delete(r.blocked, ip)
}

func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
