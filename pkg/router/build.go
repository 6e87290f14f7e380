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

package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kacheio/swcache/pkg/cachecontrol"
	"github.com/kacheio/swcache/pkg/cachestore"
	"github.com/kacheio/swcache/pkg/config"
	"github.com/kacheio/swcache/pkg/expiration"
	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/plugin"
	"github.com/kacheio/swcache/pkg/strategy"
	"github.com/kacheio/swcache/pkg/tsindex"
	"github.com/kacheio/swcache/pkg/wrapper"
)

// Build constructs a Router from cfg: one wrapper.Wrapper per route (sharing
// store, index and metrics), wired to the strategy its config.Strategy
// names, registered against cfg.Routes[i].Pattern.
func Build(cfg *config.Configuration, store *cachestore.Store, index *tsindex.Index, m *metrics.Metrics) (*Router, error) {
	r := New()
	for _, route := range cfg.Routes {
		handler, err := buildRoute(cfg, route, store, index, m)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", route.Pattern, err)
		}
		r.Handle(route.Pattern, handler)
	}
	return r, nil
}

func buildRoute(cfg *config.Configuration, route *config.Route, store *cachestore.Store, index *tsindex.Index, m *metrics.Metrics) (strategy.Handler, error) {
	cacheName := route.CacheName
	if cacheName == "" {
		cacheName = "sw-runtime-caching-" + cfg.Scope
	}

	var plugins []plugin.Plugin
	if cfg.Expiration != nil && index != nil {
		exp, err := expiration.New(store.Open(cacheName), expiration.Options{
			MaxEntries:    cfg.Expiration.MaxEntries,
			MaxAgeSeconds: cfg.Expiration.MaxAgeSeconds,
			Index:         index,
			Metrics:       m,
		})
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, exp.AsPlugin())
	}

	var varyNamesFunc func(*http.Response) []string
	if route.EnableCacheControl {
		plugins = append(plugins, cachecontrol.CacheabilityPlugin())
		varyNamesFunc = cachecontrol.VaryNames
	}

	w, err := wrapper.New(store, wrapper.Options{
		CacheName: cacheName,
		Plugins:   plugins,
		FetchOptions: wrapper.FetchOptions{
			Timeout:    time.Duration(cfg.Wrapper.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Wrapper.MaxRetries,
		},
		MatchOptions: cachestore.MatchOptions{
			IgnoreSearch: route.IgnoreSearch,
			IgnoreMethod: route.IgnoreMethod,
			IgnoreVary:   route.IgnoreVary,
		},
		Metrics:       m,
		VaryNamesFunc: varyNamesFunc,
	})
	if err != nil {
		return nil, err
	}

	switch route.Strategy {
	case config.StrategyCacheFirst:
		return strategy.NewCacheFirst(w), nil
	case config.StrategyCacheOnly:
		return strategy.NewCacheOnly(w), nil
	case config.StrategyNetworkOnly:
		return strategy.NewNetworkOnly(w), nil
	case config.StrategyNetworkFirst:
		timeout := time.Duration(route.NetworkTimeoutSeconds) * time.Second
		return strategy.NewNetworkFirst(w, timeout), nil
	case config.StrategyStaleWhileRevalidate:
		return strategy.NewStaleWhileRevalidate(w), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", route.Strategy)
	}
}
