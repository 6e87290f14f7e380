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

// Package strategy implements the five caching strategies as small handlers
// over a single wrapper.Wrapper: CacheFirst, CacheOnly, NetworkOnly,
// NetworkFirst (with an optional timeout race) and StaleWhileRevalidate.
package strategy

import (
	"context"
	"net/http"

	"github.com/kacheio/swcache/pkg/errs"
	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/wrapper"
)

// Handler is the strategy surface a router dispatches a fetch event to.
type Handler interface {
	Handle(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Strategy names, used as the "strategy" label on the strategy_requests_total
// metric. Match config.Strategy's YAML values.
const (
	nameCacheFirst           = "cache-first"
	nameCacheOnly            = "cache-only"
	nameNetworkOnly          = "network-only"
	nameNetworkFirst         = "network-first"
	nameStaleWhileRevalidate = "stale-while-revalidate"
)

// CacheFirst answers from the cache, falling back to the network only on a
// miss. The network response is written to the cache in the background
// (Wrapper.Wait waits for that write), and a response that is not cacheable
// is returned without being stored.
type CacheFirst struct {
	w *wrapper.Wrapper
}

// NewCacheFirst builds a CacheFirst handler over w.
func NewCacheFirst(w *wrapper.Wrapper) *CacheFirst {
	return &CacheFirst{w: w}
}

func (s *CacheFirst) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	res, err := s.w.Match(ctx, req)
	if err != nil {
		s.w.ObserveStrategy(nameCacheFirst, metrics.ResultError)
		return nil, err
	}
	if res != nil {
		wrapper.SetXCache(res, wrapper.XCacheHit)
		s.w.ObserveStrategy(nameCacheFirst, metrics.ResultHit)
		return res, nil
	}
	res, err = s.w.FetchAndCache(ctx, req, wrapper.FetchAndCacheOptions{})
	if err != nil {
		s.w.ObserveStrategy(nameCacheFirst, metrics.ResultError)
		return nil, err
	}
	wrapper.SetXCache(res, wrapper.XCacheMiss)
	s.w.ObserveStrategy(nameCacheFirst, metrics.ResultMiss)
	return res, nil
}

// CacheOnly answers strictly from the cache, never touching the network.
type CacheOnly struct {
	w *wrapper.Wrapper
}

// NewCacheOnly builds a CacheOnly handler over w.
func NewCacheOnly(w *wrapper.Wrapper) *CacheOnly {
	return &CacheOnly{w: w}
}

func (s *CacheOnly) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	res, err := s.w.Match(ctx, req)
	if err != nil {
		s.w.ObserveStrategy(nameCacheOnly, metrics.ResultError)
		return nil, err
	}
	if res == nil {
		s.w.ObserveStrategy(nameCacheOnly, metrics.ResultMiss)
		return nil, errs.New(errs.NoResponseReceived, "no cached response for %s", req.URL)
	}
	wrapper.SetXCache(res, wrapper.XCacheHit)
	s.w.ObserveStrategy(nameCacheOnly, metrics.ResultHit)
	return res, nil
}

// NetworkOnly always goes to the network, bypassing the cache entirely.
type NetworkOnly struct {
	w *wrapper.Wrapper
}

// NewNetworkOnly builds a NetworkOnly handler over w.
func NewNetworkOnly(w *wrapper.Wrapper) *NetworkOnly {
	return &NetworkOnly{w: w}
}

func (s *NetworkOnly) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	res, err := s.w.Fetch(ctx, req)
	if err != nil {
		s.w.ObserveStrategy(nameNetworkOnly, metrics.ResultError)
		return nil, err
	}
	wrapper.SetXCache(res, wrapper.XCacheMiss)
	s.w.ObserveStrategy(nameNetworkOnly, metrics.ResultMiss)
	return res, nil
}
