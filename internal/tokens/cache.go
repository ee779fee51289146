package tokens

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrNotReady signals that the token store has not been loaded yet,
	// typically during startup while the database is unreachable.
	ErrNotReady = errors.New("token store not ready")
	// ErrScopeDenied signals a known key without access to the route.
	ErrScopeDenied = errors.New("api key not allowed for this route")
)

// ScopeConvert grants access to the conversion endpoint.
const ScopeConvert = "convert"

// Scope is the set of routes a token may call. An empty scope allows all.
type Scope map[string]bool

// Entry is one API token's settings.
type Entry struct {
	RateLimit int
	Scope     Scope
}

// Allows reports whether the entry may use scope.
func (e Entry) Allows(scope string) bool {
	if len(e.Scope) == 0 {
		return true
	}
	return e.Scope[scope]
}

// Cache is an in-memory snapshot of the token table.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole snapshot. The map is copied.
func (c *Cache) Replace(m map[string]Entry) {
	next := make(map[string]Entry, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// Ready returns true once the cache has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

func (c *Cache) Lookup(token string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	return e, ok
}

// Validate checks token against the snapshot and scope.
func (c *Cache) Validate(token, scope string) error {
	if !c.Ready() {
		return ErrNotReady
	}
	e, ok := c.Lookup(token)
	if !ok {
		return ErrInvalidAPIKey
	}
	if !e.Allows(scope) {
		return ErrScopeDenied
	}
	return nil
}

// RateLimit returns the configured limit for token. Unknown tokens get 0,
// which disables token rate limiting for them.
func (c *Cache) RateLimit(token string) int {
	e, _ := c.Lookup(token)
	return e.RateLimit
}

// Len returns the number of cached tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
