package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DiscoveryDocument is the subset of the provider's well-known configuration
// this application consumes.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type cachedDiscovery struct {
	doc       *DiscoveryDocument
	expiresAt time.Time
}

// DiscoveryCache caches provider discovery documents by issuer
type DiscoveryCache struct {
	mu    sync.RWMutex
	cache map[string]*cachedDiscovery
	ttl   time.Duration
}

// NewDiscoveryCache creates a discovery cache with the given TTL
func NewDiscoveryCache(ttl time.Duration) *DiscoveryCache {
	return &DiscoveryCache{
		cache: make(map[string]*cachedDiscovery),
		ttl:   ttl,
	}
}

// Discover fetches, or returns from cache, the discovery document for an issuer
func (c *DiscoveryCache) Discover(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	c.mu.RLock()
	cached, exists := c.cache[issuer]
	c.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.doc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine might have fetched)
	cached, exists = c.cache[issuer]
	if exists && time.Now().Before(cached.expiresAt) {
		return cached.doc, nil
	}

	discoveryURL := fmt.Sprintf("%s/.well-known/openid-configuration", issuer)
	req, err := http.NewRequestWithContext(ctx, "GET", discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	if doc.Issuer == "" || doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.JWKSURI == "" {
		return nil, fmt.Errorf("incomplete discovery document from %s", issuer)
	}

	c.cache[issuer] = &cachedDiscovery{
		doc:       &doc,
		expiresAt: time.Now().Add(c.ttl),
	}

	return &doc, nil
}
