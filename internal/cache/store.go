// Package cache provides the key/value cache store the tree hierarchy and
// filter store persist into. Values are JSON blobs replaced wholesale under
// one key; there is no TTL and no size bound. Staleness is bounded only by
// explicit invalidation (container nodes clearing their cache).
package cache

import (
	"encoding/json"
	"fmt"
)

// KeyPrefix namespaces every cache key so cloudscape entries can coexist
// with other data in a shared persistent store. The generated key layout is
// stable API: changing it orphans previously cached data.
const KeyPrefix = "cloudscape.cache"

// GenerateKey returns the namespaced cache key for a caller-supplied id,
// e.g. GenerateKey("account_a1.subscriptions").
func GenerateKey(id string) string {
	return fmt.Sprintf("%s.%s", KeyPrefix, id)
}

// Store is the key/value persistence primitive. Writers always perform
// whole-value replacement under one key; by construction of the key-naming
// scheme no two components write the same key concurrently, so last write
// wins per key is sufficient.
type Store interface {
	// Get returns the raw value for key, or ok=false if absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set replaces the value stored under key.
	Set(key string, value []byte) error
}

// GetJSON reads key from s and unmarshals it into out. Returns ok=false
// when the key is absent.
func GetJSON(s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals value and stores it under key, replacing any previous
// value entirely (no partial merge).
func SetJSON(s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	if err := s.Set(key, raw); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}
