package connector

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtTokenCacheBound bounds the token cache at 256 entries. Eviction policy
// is unspecified beyond "bounded": this cache evicts by clearing the whole
// map once the bound is reached, which is simple and bounds memory without
// tracking per-entry recency.
const jwtTokenCacheBound = 256

type jwtCacheEntry struct {
	token   string
	expires time.Time
}

// jwtTokenCache is a per-domain bearer token cache shared by every clone of
// an HTTP connector (HTTP connectors are stateless and may run
// concurrently, so the cache guards its own short critical sections).
type jwtTokenCache struct {
	mu      sync.Mutex
	entries map[string]jwtCacheEntry
}

func newJWTTokenCache() *jwtTokenCache {
	return &jwtTokenCache{entries: make(map[string]jwtCacheEntry)}
}

func (c *jwtTokenCache) get(domain string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[domain]
	if !ok {
		return "", false
	}

	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, domain)

		return "", false
	}

	return e.token, true
}

func (c *jwtTokenCache) put(domain, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= jwtTokenCacheBound {
		c.entries = make(map[string]jwtCacheEntry)
	}

	c.entries[domain] = jwtCacheEntry{token: token, expires: expiryOf(token)}
}

// expiryOf extracts the "exp" claim from an unverified JWT so the cache can
// proactively drop a token before the remote registry rejects it. The
// connector never uses this to authenticate its own side - tokens are
// issued by the registry, not validated here - so ParseUnverified is
// appropriate: we only read a hint, we don't trust the claim.
func expiryOf(token string) time.Time {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
