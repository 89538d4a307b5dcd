package security

import (
	"sync"
	"time"
)

// Cooldown allows one action per key per window
type Cooldown struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewCooldown creates a cooldown of the given window
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		last:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Allow records an attempt for key. When the key is still cooling down it
// returns false and the time left; the attempt is then not recorded.
func (c *Cooldown) Allow(key string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.last[key]; ok {
		if left := c.window - now.Sub(at); left > 0 {
			return false, left
		}
	}

	c.last[key] = now
	c.prune(now)
	return true, 0
}

// Reset forgets key, typically after the attempt failed upstream
func (c *Cooldown) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, key)
}

// prune drops expired entries so the map does not grow without bound
func (c *Cooldown) prune(now time.Time) {
	for k, at := range c.last {
		if now.Sub(at) >= c.window {
			delete(c.last, k)
		}
	}
}
