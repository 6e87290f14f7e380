// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package cachestore implements the response cache facade: named byte
// stores keyed by request fingerprint, with pluggable backends.
package cachestore

import (
	"context"
	"errors"
	"time"
)

// Provider is a generalized interface to a byte-oriented cache backend.
// Response cache entries (a fingerprint plus a serialized response) are
// stored and fetched through this interface; encoding lives one layer up,
// in Store.
type Provider interface {
	// Get retrieves an element based on a key, returning nil if the element
	// does not exist or has expired.
	Get(ctx context.Context, key string) []byte

	// Set adds an element to the cache with the given time-to-live. A zero
	// ttl means the entry never expires at this layer (expiration is then
	// left entirely to a plugin such as pkg/expiration).
	Set(key string, value []byte, ttl time.Duration)

	// Delete deletes an element in the cache. Returns true if the key was
	// present.
	Delete(ctx context.Context, key string) bool

	// Keys returns a slice of cache keys with the given prefix, or all keys
	// if prefix is empty.
	Keys(ctx context.Context, prefix string) []string

	// Size returns the number of entries currently stored in the cache.
	Size() int
}

// RemoteCacheClient is a generalized interface to interact with a remote
// cache used to share response entries across worker instances.
type RemoteCacheClient interface {
	// Fetch fetches a key from the remote cache.
	// Returns nil if an error occurs.
	Fetch(ctx context.Context, key string) []byte

	// Store stores a key and value into the remote cache and waits for
	// acknowledgement. Returns an error in case the operation fails.
	Store(key string, value []byte, ttl time.Duration) error

	// StoreAsync enqueues a store operation without waiting for
	// acknowledgement.
	StoreAsync(key string, value []byte, ttl time.Duration) error

	// Delete deletes a key from the remote cache.
	Delete(ctx context.Context, key string) error

	// Keys returns a slice of cache keys.
	Keys(ctx context.Context, prefix string) []string

	// Stop closes the client connection.
	Stop()
}

const (
	BackendInMemory = "inmemory"
	BackendRedis    = "redis"
)

var errUnsupportedCacheBackend = errors.New("unsupported cache backend")

// BackendConfig holds the configuration for the response store backend.
type BackendConfig struct {
	Backend    string              `yaml:"backend"`
	Layered    bool                `yaml:"layered"`
	LayeredTTL string              `yaml:"layered_ttl"`
	InMemory   InMemoryCacheConfig `yaml:"inmemory"`
	Redis      RedisClientConfig   `yaml:"redis"`
}

// NewProvider creates a storage backend based on the provided configuration.
// name is handed to the Redis client and names the Redis and layered caches;
// it does not prefix stored keys (a Handle's cache name does that), and the
// in-memory backend ignores it.
func NewProvider(name string, config BackendConfig) (Provider, error) {
	switch config.Backend {
	case "", BackendInMemory:
		return NewInMemoryCache(config.InMemory)
	case BackendRedis:
		client, err := NewRedisClient(name, config.Redis)
		if err != nil {
			return nil, errors.Join(err, errors.New("failed to create redis client"))
		}
		remote := NewRedisCache(name, client)
		if config.Layered {
			ttl, err := time.ParseDuration(config.LayeredTTL)
			if err != nil {
				ttl = 120 * time.Second
			}
			return NewCached(remote, name, ttl, config.InMemory)
		}
		return remote, nil
	default:
		return nil, errUnsupportedCacheBackend
	}
}
