package paypal

import (
	"sync"
	"time"
)

// TokenCache holds the single shared gateway credential. It is owned by the
// Client rather than living as package state so tests can substitute a fake
// clock. The mutex guards only the cached value; it is never held across a
// network call, so two requests that both observe an expired token may both
// refresh it. That duplicate exchange is harmless and cheaper than
// serializing unrelated requests.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewTokenCache(now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{now: now}
}

// Get returns the cached token if it has not expired.
func (c *TokenCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Put stores a freshly exchanged token. The ttl passed in should already
// include any safety margin.
func (c *TokenCache) Put(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
}
