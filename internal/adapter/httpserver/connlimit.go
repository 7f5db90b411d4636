package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterSweepEvery = 5 * time.Minute
	rateLimiterIdleAfter  = 10 * time.Minute
)

// LimitReason describes why a websocket upgrade was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits guards websocket upgrades with a global cap, a per-IP cap
// and a per-IP token bucket for new connections.
type ConnectionLimits struct {
	clock clockwork.Clock

	mu        sync.Mutex
	current   atomic.Int64 // written under mu, read lock-free by Current
	globalMax int64

	perIP    map[string]int
	perIPMax int

	rate      rate.Limit
	burst     int
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(clock clockwork.Clock, globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		clock:     clock,
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		buckets:   make(map[string]*bucket),
		nextSweep: clock.Now().Add(rateLimiterSweepEvery),
	}
}

// Acquire reserves a slot for ip. Every successful Acquire must be paired
// with a Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.allow(ip) {
		return false, LimitReasonRate
	}

	if l.current.Load() >= l.globalMax {
		return false, LimitReasonGlobal
	}
	if l.perIP[ip] >= l.perIPMax {
		return false, LimitReasonPerIP
	}

	l.current.Add(1)
	l.perIP[ip]++
	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count, ok := l.perIP[ip]
	if !ok {
		return
	}
	if count <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = count - 1
	}
	l.current.Add(-1)
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// CountFor returns the number of slots held by ip.
func (l *ConnectionLimits) CountFor(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// allow must be called with mu held.
func (l *ConnectionLimits) allow(ip string) bool {
	now := l.clock.Now()
	if now.After(l.nextSweep) {
		cutoff := now.Add(-rateLimiterIdleAfter)
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.nextSweep = now.Add(rateLimiterSweepEvery)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ConnectionLimits) trackedBuckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
