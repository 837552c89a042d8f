// Package ratelimit implements faucetd's per-IP request throttling: a
// loose "general" limit across every endpoint and a tighter
// "submission" limit applied only to /submit-proof. Each policy holds
// one token bucket per client IP in a bounded LRU cache, so a flood of
// distinct source addresses can't grow the limiter state without
// bound — evicted buckets simply start fresh, which only ever relaxes
// a limit, never tightens it unfairly.
package ratelimit

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the LRU cache backing each Limiter.
const maxTrackedIPs = 50_000

// Limiter throttles requests per client IP using a token bucket refilled
// to burst over window.
type Limiter struct {
	cache *lru.Cache
	rps   rate.Limit
	burst int
}

// New constructs a Limiter that allows burst requests per window,
// refilling continuously at burst/window.
func New(window time.Duration, burst int) (*Limiter, error) {
	cache, err := lru.New(maxTrackedIPs)
	if err != nil {
		return nil, err
	}
	rps := rate.Limit(float64(burst) / window.Seconds())
	return &Limiter{cache: cache, rps: rps, burst: burst}, nil
}

// Allow reports whether ip may proceed, consuming a token if so.
func (l *Limiter) Allow(ip string) bool {
	return l.bucketFor(ip).Allow()
}

func (l *Limiter) bucketFor(ip string) *rate.Limiter {
	if v, ok := l.cache.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.cache.Add(ip, lim)
	return lim
}

// Set bundles the general and submission-specific limiters faucetd
// applies at the HTTP boundary.
type Set struct {
	General *Limiter
	Submit  *Limiter
}

// NewSet builds both limiters from resolved config values.
func NewSet(generalWindow time.Duration, generalBurst int, submitWindow time.Duration, submitBurst int) (*Set, error) {
	general, err := New(generalWindow, generalBurst)
	if err != nil {
		return nil, err
	}
	submit, err := New(submitWindow, submitBurst)
	if err != nil {
		return nil, err
	}
	return &Set{General: general, Submit: submit}, nil
}
