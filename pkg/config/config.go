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

// Package config holds the YAML-decoded configuration for a swcache
// deployment: the listener the router binds to, the route-to-strategy
// table, the response store backend, and the ambient wrapper/expiration/
// logging settings every route shares unless it overrides them.
package config

import (
	"errors"

	"github.com/kacheio/swcache/pkg/cachestore"
)

var (
	errInvalidListenersConfig = errors.New("invalid listeners config")
	errInvalidRoutesConfig    = errors.New("invalid routes config")
	errInvalidRouteStrategy   = errors.New("invalid route strategy")
)

// Configuration is the root configuration.
type Configuration struct {
	// Scope derives the default cache name ("sw-runtime-caching-" + Scope)
	// for any route that does not set its own CacheName.
	Scope string `yaml:"scope"`

	Listeners Listeners `yaml:"listeners"`
	Routes    Routes    `yaml:"routes"`

	Store      cachestore.BackendConfig `yaml:"store"`
	Wrapper    WrapperConfig            `yaml:"wrapper"`
	Expiration *ExpirationConfig        `yaml:"expiration,omitempty"`

	Log *Log `yaml:"logging"`
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	return errors.Join(
		c.Listeners.Validate(),
		c.Routes.Validate(),
	)
}

// Listeners holds the listener configs.
type Listeners map[string]*Listener

// Listener holds the listener config.
type Listener struct {
	Addr string `yaml:"addr"`
}

// Validate validates the listener config.
func (l Listeners) Validate() error {
	if len(l) < 1 {
		return errInvalidListenersConfig
	}
	return nil
}

// Strategy names one of the five caching strategies a Route binds to.
type Strategy string

const (
	StrategyCacheFirst           Strategy = "cache-first"
	StrategyCacheOnly            Strategy = "cache-only"
	StrategyNetworkOnly          Strategy = "network-only"
	StrategyNetworkFirst         Strategy = "network-first"
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// Routes binds URL patterns to caching strategies.
type Routes []*Route

// Route is a single pattern-to-strategy binding, matching the
// cacheName?/plugins?/fetchOptions?/matchOptions? construction surface a
// handler accepts.
type Route struct {
	Pattern  string   `yaml:"pattern"`
	Strategy Strategy `yaml:"strategy"`

	// CacheName overrides the configuration-wide default for this route.
	CacheName string `yaml:"cache_name,omitempty"`

	// NetworkTimeoutSeconds only applies to StrategyNetworkFirst.
	NetworkTimeoutSeconds int `yaml:"network_timeout_seconds,omitempty"`

	IgnoreSearch bool `yaml:"ignore_search,omitempty"`
	IgnoreMethod bool `yaml:"ignore_method,omitempty"`
	IgnoreVary   bool `yaml:"ignore_vary,omitempty"`

	// EnableCacheControl replaces the default response.ok cacheability
	// check with the stricter, RFC 7234-aware one from pkg/cachecontrol,
	// and derives the cache entry's Vary pins from the response's own
	// Vary header instead of leaving it unset.
	EnableCacheControl bool `yaml:"enable_cache_control,omitempty"`
}

// Validate validates the route table.
func (r Routes) Validate() error {
	if len(r) < 1 {
		return errInvalidRoutesConfig
	}
	for _, route := range r {
		switch route.Strategy {
		case StrategyCacheFirst, StrategyCacheOnly, StrategyNetworkOnly,
			StrategyNetworkFirst, StrategyStaleWhileRevalidate:
		default:
			return errInvalidRouteStrategy
		}
	}
	return nil
}

// WrapperConfig configures the network round trip every route's wrapper
// performs on a cache miss.
type WrapperConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds,omitempty"`
	MaxRetries     uint `yaml:"max_retries,omitempty"`
}

// ExpirationConfig configures the shared expiration plugin. At least one
// of MaxEntries/MaxAgeSeconds must be set; enforced at construction by
// errs.AssertMaxEntriesOrAge, not here.
type ExpirationConfig struct {
	MaxEntries    int   `yaml:"max_entries,omitempty"`
	MaxAgeSeconds int64 `yaml:"max_age_seconds,omitempty"`

	// IndexPath roots the on-disk timestamp index. Empty uses an in-memory
	// index, lost on restart.
	IndexPath string `yaml:"index_path,omitempty"`
}

// Log holds the logger configuration.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Color  bool   `yaml:"color,omitempty"`

	FilePath   string `yaml:"file,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}
