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

// Package plugin defines the five lifecycle hooks a caching strategy's
// Request Wrapper fans out to, and the Registry that enforces the
// single-transform-plugin invariant at construction time.
package plugin

import (
	"context"
	"net/http"

	"github.com/kacheio/swcache/pkg/errs"
)

// RequestWillFetchFunc runs before the network call, once per registered
// plugin, in registration order. It must return the (possibly rewritten)
// request that replaces req for subsequent callbacks and the network call.
type RequestWillFetchFunc func(ctx context.Context, req *http.Request) (*http.Request, error)

// FetchDidFailFunc is an observer invoked with the original (pre-rewrite)
// request when the network call fails. Its own errors are swallowed.
type FetchDidFailFunc func(ctx context.Context, req *http.Request)

// CacheWillUpdateFunc decides whether a response is cacheable. At most one
// plugin may register this hook.
type CacheWillUpdateFunc func(ctx context.Context, req *http.Request, res *http.Response) (bool, error)

// CacheDidUpdateFunc is an observer invoked once per registered plugin
// after a successful cache.put. oldResponse is nil if there was none.
type CacheDidUpdateFunc func(ctx context.Context, cacheName string, oldResponse, newResponse *http.Response)

// CacheWillMatchFunc transforms the raw cache.match result. Returning a nil
// response with a nil error causes the wrapper to treat this as a miss. At
// most one plugin may register this hook.
type CacheWillMatchFunc func(ctx context.Context, cached *http.Response) (*http.Response, error)

// Plugin is a bag of callbacks drawn from the five hook names; any field
// left nil is simply absent for that plugin.
type Plugin struct {
	Name             string
	RequestWillFetch RequestWillFetchFunc
	FetchDidFail     FetchDidFailFunc
	CacheWillUpdate  CacheWillUpdateFunc
	CacheDidUpdate   CacheDidUpdateFunc
	CacheWillMatch   CacheWillMatchFunc
}

// Registry holds a Request Wrapper's plugins, split by hook, with the
// single-transform-plugin invariant enforced once at construction.
type Registry struct {
	requestWillFetch []RequestWillFetchFunc
	fetchDidFail     []FetchDidFailFunc
	cacheDidUpdate   []CacheDidUpdateFunc
	cacheWillUpdate  CacheWillUpdateFunc
	cacheWillMatch   CacheWillMatchFunc
}

// NewRegistry builds a Registry from plugins, in registration order.
// It fails with errs.MultipleCacheWillUpdatePlugins or
// errs.MultipleCacheWillMatchPlugins if more than one plugin implements
// the corresponding transform hook.
func NewRegistry(plugins []Plugin) (*Registry, error) {
	r := &Registry{}

	updateCount, matchCount := 0, 0
	for _, p := range plugins {
		if p.RequestWillFetch != nil {
			r.requestWillFetch = append(r.requestWillFetch, p.RequestWillFetch)
		}
		if p.FetchDidFail != nil {
			r.fetchDidFail = append(r.fetchDidFail, p.FetchDidFail)
		}
		if p.CacheDidUpdate != nil {
			r.cacheDidUpdate = append(r.cacheDidUpdate, p.CacheDidUpdate)
		}
		if p.CacheWillUpdate != nil {
			updateCount++
			r.cacheWillUpdate = p.CacheWillUpdate
		}
		if p.CacheWillMatch != nil {
			matchCount++
			r.cacheWillMatch = p.CacheWillMatch
		}
	}

	if err := errs.AssertAtMostOneTransformPlugin(
		updateCount, errs.MultipleCacheWillUpdatePlugins, "cacheWillUpdate"); err != nil {
		return nil, err
	}
	if err := errs.AssertAtMostOneTransformPlugin(
		matchCount, errs.MultipleCacheWillMatchPlugins, "cacheWillMatch"); err != nil {
		return nil, err
	}

	return r, nil
}

// RunRequestWillFetch threads req through every requestWillFetch callback
// in order, each input being the previous output.
func (r *Registry) RunRequestWillFetch(ctx context.Context, req *http.Request) (*http.Request, error) {
	for _, fn := range r.requestWillFetch {
		next, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		req = next
	}
	return req, nil
}

// RunFetchDidFail invokes every fetchDidFail observer with req.
func (r *Registry) RunFetchDidFail(ctx context.Context, req *http.Request) {
	for _, fn := range r.fetchDidFail {
		fn(ctx, req)
	}
}

// HasCacheWillUpdate reports whether a cacheWillUpdate plugin is registered.
func (r *Registry) HasCacheWillUpdate() bool { return r.cacheWillUpdate != nil }

// RunCacheWillUpdate evaluates cacheability: the registered plugin if any,
// else the default response.ok (2xx) rule.
func (r *Registry) RunCacheWillUpdate(ctx context.Context, req *http.Request, res *http.Response) (bool, error) {
	if r.cacheWillUpdate != nil {
		return r.cacheWillUpdate(ctx, req, res)
	}
	return res.StatusCode >= 200 && res.StatusCode < 300, nil
}

// HasCacheDidUpdate reports whether any cacheDidUpdate plugin is registered.
func (r *Registry) HasCacheDidUpdate() bool { return len(r.cacheDidUpdate) > 0 }

// RunCacheDidUpdate invokes every cacheDidUpdate observer, in registration order.
func (r *Registry) RunCacheDidUpdate(ctx context.Context, cacheName string, oldResponse, newResponse *http.Response) {
	for _, fn := range r.cacheDidUpdate {
		fn(ctx, cacheName, oldResponse, newResponse)
	}
}

// RunCacheWillMatch passes cached through the registered transform, if any.
// Absent a plugin, cached is returned unchanged.
func (r *Registry) RunCacheWillMatch(ctx context.Context, cached *http.Response) (*http.Response, error) {
	if r.cacheWillMatch == nil {
		return cached, nil
	}
	return r.cacheWillMatch(ctx, cached)
}
