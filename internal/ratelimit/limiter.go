// Package ratelimit paces scenario starts against each target host.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the start pacing configuration.
type Config struct {
	StartsPerSecond float64       // Scenario starts per second per host
	Burst           int           // Starts allowed back to back before pacing kicks in
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig provides sensible defaults for start pacing.
var DefaultConfig = Config{
	StartsPerSecond: 2,
	Burst:           4,
	CleanupInterval: time.Hour,
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter manages one token bucket per host.
type Limiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	config   Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLimiter creates a limiter with the given configuration.
// It starts a background goroutine for cleanup.
func NewLimiter(config Config) *Limiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	l := &Limiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Allow reports whether a scenario may start against host right now.
func (l *Limiter) Allow(host string) bool {
	return l.GetLimiter(host).Allow()
}

// Wait blocks until a scenario may start against host or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.GetLimiter(host).Wait(ctx)
}

// GetLimiter returns the token bucket for host, creating one if necessary.
func (l *Limiter) GetLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.limiters[host]; ok {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	limit := rate.Limit(l.config.StartsPerSecond)
	if l.config.StartsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := l.config.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	l.limiters[host] = &limiterEntry{
		limiter:  limiter,
		lastUsed: time.Now(),
	}
	return limiter
}

// Cleanup removes limiters that have been idle for longer than the cleanup interval.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.config.CleanupInterval)
	for host, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, host)
		}
	}
}

func (l *Limiter) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish. Safe to call
// more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

// Len returns the number of tracked hosts.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
