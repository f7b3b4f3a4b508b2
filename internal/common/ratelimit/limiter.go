// Package ratelimit throttles work per key using golang.org/x/time/rate.
//
// The shard layer keys limiters by shard identity so that a burst of
// scatter/gather calls cannot open more handles per second on one shard
// than the shard is configured to accept.
package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size"`
	Enabled           bool    `json:"enabled" yaml:"enabled"`
}

// DefaultConfig returns a disabled limiter configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 100,
		BurstSize:         20,
		Enabled:           false,
	}
}

// Validate validates the rate limiter configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst_size must be positive, got %d", c.BurstSize)
	}
	return nil
}

// Limiter holds one token bucket per key.
type Limiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New creates a keyed limiter
func New(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Limiter{
		config:   config,
		limiters: make(map[string]*limiterEntry),
	}, nil
}

// Enabled reports whether the limiter throttles at all
func (l *Limiter) Enabled() bool {
	return l.config.Enabled
}

// Wait blocks until key may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.config.Enabled {
		return nil
	}
	return l.forKey(key).Wait(ctx)
}

// Allow reports whether key may proceed now without blocking
func (l *Limiter) Allow(key string) bool {
	if !l.config.Enabled {
		return true
	}
	return l.forKey(key).Allow()
}

func (l *Limiter) forKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter
}

// Keys returns the keys that currently hold a bucket, sorted
func (l *Limiter) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.limiters))
	for k := range l.limiters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Evict drops buckets unused for longer than idle and returns how many went
func (l *Limiter) Evict(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	evicted := 0
	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
			evicted++
		}
	}
	return evicted
}
