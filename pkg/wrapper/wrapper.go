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

// Package wrapper implements the request wrapper: the glue between a
// caching strategy, the response cache facade and the plugin registry. It
// owns cache naming, the network round trip (with timeout and retry), the
// cacheability decision, clone discipline between the caller's response and
// the cache-bound copy, and the fire-and-forget path for waitOnCache:false
// writes.
package wrapper

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/kacheio/swcache/pkg/cachestore"
	"github.com/kacheio/swcache/pkg/clock"
	"github.com/kacheio/swcache/pkg/errs"
	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/plugin"
)

// ResponseTypeHeader is the conventional, internal-only header a transport
// or plugin sets to classify a response's CORS visibility. Its absence
// defaults to cachestore.ResponseBasic: stdlib http.Response carries no
// native equivalent of the platform's opaque/cors response types.
const ResponseTypeHeader = "X-Swcache-Response-Type"

// XCacheHeader is the debug header a strategy may set on its returned
// response to report whether it was served from cache, the way the
// teacher's reverse proxy reports cache.HIT/cache.MISS via XCacheHeader().
const XCacheHeader = "X-Cache"

const (
	XCacheHit  = "HIT"
	XCacheMiss = "MISS"
)

// SetXCache sets the XCacheHeader on res if res is non-nil.
func SetXCache(res *http.Response, value string) {
	if res != nil {
		res.Header.Set(XCacheHeader, value)
	}
}

// FetchOptions configures the network round trip a wrapper performs on a
// cache miss.
type FetchOptions struct {
	// Timeout bounds a single round trip. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries attempted after a failed or
	// 5xx round trip. Zero disables retries.
	MaxRetries uint

	// Transport performs the actual round trip. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// FetchAndCacheOptions configures a single fetchAndCache call.
type FetchAndCacheOptions struct {
	// CacheKeyRequest, if set, is used in place of the fetched request when
	// deriving the store fingerprint and Vary snapshot (a strategy may
	// fetch with one request but want to cache under another).
	CacheKeyRequest *http.Request

	// VaryNames lists request headers, named by the response's Vary
	// header, whose values are pinned into the cache entry for a later
	// Vary-aware match. If nil, and the wrapper was built with a
	// VaryNamesFunc, the names are derived from the fetched response
	// instead.
	VaryNames []string

	// TTL is the store-layer expiration for the cached copy. Zero defers
	// all expiration to a plugin such as pkg/expiration.
	TTL time.Duration

	// WaitOnCache makes fetchAndCache block on the cache write (and the
	// cacheDidUpdate fan-out) before returning, and turns an uncacheable
	// response into an error. When false, the write is started as a
	// tracked background goroutine the caller may later Wait() on.
	WaitOnCache bool
}

// Options configures a new Wrapper.
type Options struct {
	// CacheName names the response cache handle this wrapper opens.
	// Defaults to "sw-runtime-caching-" + Scope.
	CacheName string

	// Scope is used to derive the default CacheName; ignored if CacheName
	// is set.
	Scope string

	Plugins      []plugin.Plugin
	FetchOptions FetchOptions
	MatchOptions cachestore.MatchOptions
	Clock        clock.TimeSource

	// Metrics, if set, receives fetch-duration observations. Nil disables
	// metrics recording entirely.
	Metrics *metrics.Metrics

	// VaryNamesFunc, if set, derives the Vary header names to pin for a
	// fetched response whenever a FetchAndCache call does not set
	// FetchAndCacheOptions.VaryNames itself. pkg/cachecontrol.VaryNames
	// is the expected value for a route that opts into Cache-Control-aware
	// Vary handling.
	VaryNamesFunc func(*http.Response) []string
}

// Wrapper is the request wrapper of a single caching strategy instance: one
// cache handle, one plugin registry, one fetch configuration.
type Wrapper struct {
	store     *cachestore.Store
	cacheName string
	plugins   *plugin.Registry
	matchOpts cachestore.MatchOptions
	fetch     FetchOptions
	clock     clock.TimeSource
	metrics   *metrics.Metrics

	varyNamesFunc func(*http.Response) []string

	handleOnce sync.Once
	handle     *cachestore.Handle

	wg sync.WaitGroup
}

// New builds a Wrapper bound to store, deriving the default cache name from
// opts.Scope ("sw-runtime-caching-" + scope) unless opts.CacheName is set.
func New(store *cachestore.Store, opts Options) (*Wrapper, error) {
	registry, err := plugin.NewRegistry(opts.Plugins)
	if err != nil {
		return nil, err
	}

	name := opts.CacheName
	if name == "" {
		name = "sw-runtime-caching-" + opts.Scope
	}

	fetch := opts.FetchOptions
	if fetch.Transport == nil {
		fetch.Transport = http.DefaultTransport
	}

	ts := opts.Clock
	if ts == nil {
		ts = clock.NewSystemTimeSource()
	}

	return &Wrapper{
		store:         store,
		cacheName:     name,
		plugins:       registry,
		matchOpts:     opts.MatchOptions,
		fetch:         fetch,
		clock:         ts,
		metrics:       opts.Metrics,
		varyNamesFunc: opts.VaryNamesFunc,
	}, nil
}

// CacheName returns the handle name this wrapper opens.
func (w *Wrapper) CacheName() string { return w.cacheName }

// ObserveStrategy records one strategy handler invocation against this
// wrapper's cache name. A nil Metrics (the default when Options.Metrics
// is unset) makes this a no-op.
func (w *Wrapper) ObserveStrategy(strategyName, result string) {
	if w.metrics != nil {
		w.metrics.ObserveStrategy(w.cacheName, strategyName, result)
	}
}

// Cache returns the response cache handle this wrapper opens, opening it
// (once) on first use.
func (w *Wrapper) Cache() *cachestore.Handle {
	w.handleOnce.Do(func() {
		w.handle = w.store.Open(w.cacheName)
	})
	return w.handle
}

// Match looks up req in the cache and runs the result through the
// registered cacheWillMatch transform, if any. A nil, nil result is a miss.
func (w *Wrapper) Match(ctx context.Context, req *http.Request) (*http.Response, error) {
	cached, err := w.Cache().Match(ctx, req, w.matchOpts)
	if err != nil || cached == nil {
		return cached, err
	}
	return w.plugins.RunCacheWillMatch(ctx, cached)
}

// Fetch runs req through the registered requestWillFetch chain, then
// performs the network round trip under the configured timeout and retry
// policy. On failure, fetchDidFail observers are invoked with the original,
// pre-rewrite request before the error is returned.
func (w *Wrapper) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	rewritten, err := w.plugins.RunRequestWillFetch(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := w.roundTrip(rewritten)
	if err != nil {
		w.plugins.RunFetchDidFail(ctx, req)
		return nil, err
	}
	if res == nil {
		err = errs.New(errs.NoResponseReceived, "")
		w.plugins.RunFetchDidFail(ctx, req)
		return nil, err
	}
	return res, nil
}

// roundTrip executes req against the configured transport, wrapped in a
// timeout policy (if configured) and a retry policy (if MaxRetries > 0)
// that retries on transport errors and 5xx responses.
func (w *Wrapper) roundTrip(req *http.Request) (*http.Response, error) {
	do := func() (*http.Response, error) {
		start := w.clock.Now()
		res, err := w.fetch.Transport.RoundTrip(req)
		if w.metrics != nil {
			w.metrics.ObserveFetch(w.cacheName, w.clock.Now().Sub(start))
		}
		return res, err
	}

	var policies []failsafe.Policy[*http.Response]
	if w.fetch.MaxRetries > 0 {
		policies = append(policies, retrypolicy.NewBuilder[*http.Response]().
			HandleIf(func(res *http.Response, err error) bool {
				if err != nil {
					return true
				}
				return res != nil && res.StatusCode >= 500
			}).
			WithMaxRetries(int(w.fetch.MaxRetries)).
			Build())
	}
	if w.fetch.Timeout > 0 {
		policies = append(policies, timeout.With[*http.Response](w.fetch.Timeout))
	}

	if len(policies) == 0 {
		return do()
	}
	return failsafe.With(policies...).Get(do)
}

// FetchAndCache implements the wrapper's six-step fetch-then-cache
// algorithm: fetch, decide cacheability, clone the response into a
// caller-bound copy and a cache-bound copy, and store the cache-bound copy
// either inline (WaitOnCache) or as a tracked background write.
func (w *Wrapper) FetchAndCache(ctx context.Context, req *http.Request, opts FetchAndCacheOptions) (*http.Response, error) {
	res, err := w.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	cacheable, err := w.plugins.RunCacheWillUpdate(ctx, req, res)
	if err != nil {
		return nil, err
	}
	if !cacheable {
		if opts.WaitOnCache {
			return nil, errs.New(errs.InvalidResponseForCaching, "response is not cacheable")
		}
		return res, nil
	}

	forCaller, forCache, err := cloneResponse(res)
	if err != nil {
		return nil, err
	}

	keyReq := req
	if opts.CacheKeyRequest != nil {
		keyReq = opts.CacheKeyRequest
	}
	if opts.VaryNames == nil && w.varyNamesFunc != nil {
		opts.VaryNames = w.varyNamesFunc(forCache)
	}
	typ := responseType(forCache)
	now := w.clock.Now().UnixMilli()

	store := func() {
		w.storeAndNotify(ctx, keyReq, forCache, typ, opts, now)
	}

	if opts.WaitOnCache {
		store()
	} else {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			store()
		}()
	}

	return forCaller, nil
}

// storeAndNotify snapshots oldResponse (only if a cacheDidUpdate observer is
// registered and the response is not opaque), writes the new entry, and
// fans the update out to cacheDidUpdate observers in registration order.
// Both responses have Request set to req so an observer (e.g. the
// expiration plugin) can recover the entry's URL the way it would read
// newResponse.url in the source.
func (w *Wrapper) storeAndNotify(ctx context.Context, req *http.Request, res *http.Response, typ cachestore.ResponseType, opts FetchAndCacheOptions, now int64) {
	res.Request = req

	var oldResponse *http.Response
	if w.plugins.HasCacheDidUpdate() && typ != cachestore.ResponseOpaque {
		oldResponse, _ = w.Cache().Match(ctx, req, w.matchOpts)
		if oldResponse != nil {
			oldResponse.Request = req
		}
	}

	if err := w.Cache().Put(req, res, typ, opts.VaryNames, opts.TTL, now); err != nil {
		return
	}

	if w.plugins.HasCacheDidUpdate() {
		w.plugins.RunCacheDidUpdate(ctx, w.cacheName, oldResponse, res)
	}
}

// Wait blocks until every background (waitOnCache:false) write started by
// FetchAndCache has completed. It is the life-extension primitive a
// strategy or test uses in place of a real service worker's
// event.waitUntil.
func (w *Wrapper) Wait() {
	w.wg.Wait()
}

// cloneResponse splits res into two independent responses with independent
// bodies: one to return to the caller, one to hand to the cache facade.
// httputil.DumpResponse reads res.Body to completion, so forCaller's body
// is reconstructed from the dump rather than the now-drained original.
func cloneResponse(res *http.Response) (forCaller, forCache *http.Response, err error) {
	entry, err := cachestore.NewEntry(res, responseType(res), 0, nil)
	if err != nil {
		return nil, nil, err
	}
	forCache, err = entry.Response()
	if err != nil {
		return nil, nil, err
	}
	forCaller, err = entry.Response()
	if err != nil {
		return nil, nil, err
	}
	return forCaller, forCache, nil
}

// responseType classifies res by the conventional ResponseTypeHeader,
// defaulting to basic when the header is absent.
func responseType(res *http.Response) cachestore.ResponseType {
	switch cachestore.ResponseType(res.Header.Get(ResponseTypeHeader)) {
	case cachestore.ResponseCORS:
		return cachestore.ResponseCORS
	case cachestore.ResponseOpaque:
		return cachestore.ResponseOpaque
	default:
		return cachestore.ResponseBasic
	}
}
