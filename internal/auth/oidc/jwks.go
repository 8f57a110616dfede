package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// KeyResolver resolves a provider signing key by its key ID.
type KeyResolver interface {
	ResolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// JWKSCache resolves public keys from a JWKS endpoint, caching the key set
// for a bounded TTL. Caching is a performance concern only: a miss always
// falls back to a fetch, and concurrent misses may fetch redundantly.
type JWKSCache struct {
	url        string
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
	cacheTTL  time.Duration
}

// NewJWKSCache creates a new JWKS cache for the given endpoint
func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		url:      url,
		keys:     make(map[string]*rsa.PublicKey),
		cacheTTL: ttl,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ResolveKey retrieves a public key by key ID. An unknown kid forces one
// refresh before failing, to cover provider key rotation.
func (j *JWKSCache) ResolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key, ok := j.keys[kid]
	fresh := time.Since(j.lastFetch) <= j.cacheTTL
	j.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Double-check after acquiring the write lock (another goroutine may have refreshed)
	if key, ok := j.keys[kid]; ok && time.Since(j.lastFetch) <= j.cacheTTL {
		return key, nil
	}

	if err := j.refresh(ctx); err != nil {
		return nil, err
	}

	key, ok = j.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}

	return key, nil
}

// refresh fetches the latest key set from the provider. Caller must hold the write lock.
func (j *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", j.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code %d", ErrKeyFetch, resp.StatusCode)
	}

	var jwks struct {
		Keys []json.RawMessage `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, keyData := range jwks.Keys {
		var keyInfo struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		}

		if err := json.Unmarshal(keyData, &keyInfo); err != nil {
			continue
		}

		// Only RSA keys are usable for RS256 verification
		if keyInfo.Kty != "RSA" {
			continue
		}

		nBytes, err := base64.RawURLEncoding.DecodeString(keyInfo.N)
		if err != nil {
			continue
		}

		eBytes, err := base64.RawURLEncoding.DecodeString(keyInfo.E)
		if err != nil {
			continue
		}

		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 + int(b)
		}

		newKeys[keyInfo.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: eInt,
		}
	}

	if len(newKeys) == 0 {
		return fmt.Errorf("%w: no usable keys in JWKS", ErrKeyFetch)
	}

	j.keys = newKeys
	j.lastFetch = time.Now()

	return nil
}
