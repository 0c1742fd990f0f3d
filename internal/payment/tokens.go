package payment

import (
	"sync"
	"time"

	"github.com/sanctum-app/backend-sanctum/internal/obs"
)

// tokenExpirySkew refreshes tokens slightly before the provider lifetime ends
// so an in-flight order never rides an expiring credential.
const tokenExpirySkew = 60 * time.Second

// TokenCache is a read-mostly TTL cache of provider access tokens shared
// across requests. Entries honour the provider-reported lifetime when it is
// shorter than the configured TTL; last writer wins on concurrent refresh.
type TokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]tokenEntry
}

type tokenEntry struct {
	token     AccessToken
	expiresAt time.Time
}

// NewTokenCache constructs a cache whose entries live at most ttl.
func NewTokenCache(ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]tokenEntry),
	}
}

// Get returns a live token for the provider, if any.
func (c *TokenCache) Get(provider string) (AccessToken, bool) {
	if c == nil {
		return AccessToken{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[provider]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, provider)
		c.observe(provider, "miss")
		return AccessToken{}, false
	}
	c.observe(provider, "hit")
	return entry.token, true
}

// Put stores a freshly obtained token under its provider key.
func (c *TokenCache) Put(token AccessToken) {
	if c == nil || token.Value == "" || token.Provider == "" {
		return
	}
	lifetime := c.ttl
	if token.ExpiresIn > 0 {
		reported := token.ExpiresIn - tokenExpirySkew
		if reported <= 0 {
			reported = token.ExpiresIn / 2
		}
		if reported < lifetime {
			lifetime = reported
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token.Provider] = tokenEntry{
		token:     token,
		expiresAt: c.now().Add(lifetime),
	}
}

func (c *TokenCache) observe(provider, outcome string) {
	if obs.ProviderAuthTotal != nil {
		obs.ProviderAuthTotal.WithLabelValues(provider, "cache_"+outcome).Inc()
	}
}
