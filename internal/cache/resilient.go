// Package cache provides the read-through cache used in front of hot config
// reads. A remote key/value store sits behind a circuit breaker with an
// in-process fallback, so a cache outage degrades to recomputation instead of
// failing requests.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMiss is the remote's "key absent" result. Misses are not failures and
// never move the breaker.
var ErrMiss = errors.New("cache_miss")

// Remote is the external cache contract (Redis in production). Both calls
// are fallible; the ResilientCache absorbs every error.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Options struct {
	// FailureThreshold is N consecutive remote failures before the breaker
	// opens. Default 5.
	FailureThreshold int
	// Cooldown is how long remote calls are skipped while open. Default 30s.
	Cooldown time.Duration
	// Now is injectable for tests.
	Now func() time.Time
}

// ResilientCache wraps Remote with a three-state breaker: closed (normal,
// write-through + local mirror), open (remote skipped for Cooldown), and an
// implicit half-open realized by retrying the remote once the cooldown ends.
type ResilientCache struct {
	remote Remote
	local  *memoryStore

	mu        sync.Mutex
	failures  int
	openUntil time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func New(remote Remote, opts Options) *ResilientCache {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ResilientCache{
		remote:    remote,
		local:     newMemoryStore(opts.Now),
		threshold: opts.FailureThreshold,
		cooldown:  opts.Cooldown,
		now:       opts.Now,
	}
}

// Get returns the cached value, preferring the remote while the breaker is
// closed and falling back to the in-process store on any remote error. It
// never returns an error: a miss everywhere is (nil, false).
func (c *ResilientCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.remote != nil && c.allowRemote() {
		val, err := c.remote.Get(ctx, key)
		switch {
		case err == nil:
			c.recordSuccess()
			// keep the fallback warm for the next outage; remote TTL is not
			// recoverable here, so mirror with the cooldown as a floor
			c.local.set(key, val, c.cooldown)
			return val, true
		case errors.Is(err, ErrMiss):
			c.recordSuccess()
		default:
			c.recordFailure(err)
		}
	}
	return c.local.get(key)
}

// Set writes through to the remote (breaker permitting) and always mirrors
// into the in-process fallback with the same TTL. Remote errors are absorbed.
func (c *ResilientCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.local.set(key, value, ttl)
	if c.remote == nil || !c.allowRemote() {
		return
	}
	if err := c.remote.SetWithTTL(ctx, key, value, ttl); err != nil {
		c.recordFailure(err)
		return
	}
	c.recordSuccess()
}

// allowRemote reports whether the breaker permits a remote call right now.
// Once the cooldown has elapsed the next call goes through (half-open).
func (c *ResilientCache) allowRemote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	return !c.now().Before(c.openUntil)
}

func (c *ResilientCache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures >= c.threshold {
		log.Info().Msg("cache breaker closed after successful remote call")
	}
	c.failures = 0
}

func (c *ResilientCache) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures == c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
		log.Warn().Err(err).Dur("cooldown", c.cooldown).Msg("cache breaker opened")
	} else if c.failures > c.threshold {
		// failed the half-open probe; restart the cooldown
		c.openUntil = c.now().Add(c.cooldown)
	}
}
