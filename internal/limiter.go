package internal

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// How long an address has to stay quiet before its limiter is forgotten.
const limiterIdleTTL = 5 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter limits how often a single address may open connections.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	perSec   rate.Limit
	burst    int
}

// newIPLimiter allows perSecond connections per address with a burst of the same
// size. A non-positive rate disables limiting.
func newIPLimiter(perSecond float64) *ipLimiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		perSec:   rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *ipLimiter) Allow(ip string, now time.Time) bool {
	if l.perSec <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune forgets addresses that have not connected recently.
func (l *ipLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, ip)
		}
	}
}
