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

// Package expiration implements the LRU-by-write-time + max-age eviction
// plugin: a cacheWillMatch freshness check and a cacheDidUpdate hook that
// keeps a tsindex.Index in sync with a cachestore.Handle and evicts entries
// once either bound is exceeded.
package expiration

import (
	"context"
	"net/http"
	"sync"

	"github.com/kacheio/swcache/pkg/cachestore"
	"github.com/kacheio/swcache/pkg/clock"
	"github.com/kacheio/swcache/pkg/errs"
	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/plugin"
	"github.com/kacheio/swcache/pkg/tsindex"
	"github.com/kacheio/swcache/pkg/wrapper"
)

// Options configures a Plugin. At least one of MaxEntries/MaxAgeSeconds
// must be positive.
type Options struct {
	// MaxEntries bounds the number of entries kept, evicting the
	// least-recently-stored ones first. Zero disables the bound.
	MaxEntries int

	// MaxAgeSeconds bounds how long an entry is kept after it was stored.
	// Zero disables the bound.
	MaxAgeSeconds int64

	// Index is the timestamp index backing this plugin's bookkeeping.
	Index *tsindex.Index

	Clock clock.TimeSource

	// Metrics, if set, receives eviction and entry-count observations.
	Metrics *metrics.Metrics
}

// Plugin is the expiration engine bound to a single response cache handle
// and its timestamp index.
type Plugin struct {
	cache *cachestore.Handle
	index *tsindex.Index
	clock clock.TimeSource

	maxEntries    int
	hasMaxEntries bool
	maxAgeSeconds int64
	hasMaxAge     bool

	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// New builds a Plugin evicting from cache, backed by opts.Index. It fails
// with errs.MaxEntriesOrAgeRequired unless at least one bound is set.
func New(cache *cachestore.Handle, opts Options) (*Plugin, error) {
	hasMaxEntries := opts.MaxEntries > 0
	hasMaxAge := opts.MaxAgeSeconds > 0
	if err := errs.AssertMaxEntriesOrAge(hasMaxEntries, hasMaxAge); err != nil {
		return nil, err
	}

	ts := opts.Clock
	if ts == nil {
		ts = clock.NewSystemTimeSource()
	}

	return &Plugin{
		cache:         cache,
		index:         opts.Index,
		clock:         ts,
		maxEntries:    opts.MaxEntries,
		hasMaxEntries: hasMaxEntries,
		maxAgeSeconds: opts.MaxAgeSeconds,
		hasMaxAge:     hasMaxAge,
		metrics:       opts.Metrics,
	}, nil
}

// AsPlugin adapts p to the plugin.Plugin shape a Wrapper's Options.Plugins
// expects.
func (p *Plugin) AsPlugin() plugin.Plugin {
	return plugin.Plugin{
		Name:           "expiration",
		CacheWillMatch: p.cacheWillMatch,
		CacheDidUpdate: p.cacheDidUpdate,
	}
}

// cacheWillMatch drops cachedResponse (returns a miss) once it is no longer
// fresh by isResponseFresh. Absent a MaxAgeSeconds bound, every response is
// fresh, and an opaque response is always fresh.
func (p *Plugin) cacheWillMatch(ctx context.Context, cached *http.Response) (*http.Response, error) {
	if !p.hasMaxAge {
		return cached, nil
	}
	if cachestore.ResponseType(cached.Header.Get(wrapper.ResponseTypeHeader)) == cachestore.ResponseOpaque {
		return cached, nil
	}
	now := p.clock.Now().UnixMilli()
	if isResponseFresh(cached, p.maxAgeSeconds, now) {
		return cached, nil
	}
	return nil, nil
}

// isResponseFresh reads res's Date header; an absent or unparseable Date is
// treated as fresh. Otherwise fresh iff parsedDate + maxAgeSeconds*1000 >= now.
func isResponseFresh(res *http.Response, maxAgeSeconds int64, now int64) bool {
	dateHeader := res.Header.Get("Date")
	if dateHeader == "" {
		return true
	}
	parsed, err := http.ParseTime(dateHeader)
	if err != nil {
		return true
	}
	return parsed.UnixMilli()+maxAgeSeconds*1000 >= now
}

// cacheDidUpdate timestamps newResponse's URL, awaited, then kicks off
// eviction in the background: the caller's response has already been
// returned by the time expireEntries runs.
func (p *Plugin) cacheDidUpdate(ctx context.Context, cacheName string, oldResponse, newResponse *http.Response) {
	if newResponse.Request == nil {
		return
	}
	url := newResponse.Request.URL.String()
	now := p.clock.Now().UnixMilli()

	if err := p.index.Put(url, now); err != nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_, _ = p.ExpireEntries(context.Background(), now)
	}()
}

// Wait blocks until every background eviction started by cacheDidUpdate has
// completed. Tests use this in place of a real service worker's
// event.waitUntil.
func (p *Plugin) Wait() {
	p.wg.Wait()
}

// FindOldEntries returns, oldest first, every URL whose stored timestamp is
// older than now - MaxAgeSeconds*1000. Returns nil if MaxAgeSeconds is unset.
func (p *Plugin) FindOldEntries(now int64) ([]string, error) {
	if !p.hasMaxAge {
		return nil, nil
	}
	cutoff := now - p.maxAgeSeconds*1000

	var urls []string
	err := p.index.IterateByTimestamp(func(url string, ts int64) bool {
		if ts >= cutoff {
			return false
		}
		urls = append(urls, url)
		return true
	})
	return urls, err
}

// FindExtraEntries returns, least-recently-stored first, the URLs beyond
// the MaxEntries bound. It stops the ascending scan once the remaining
// unvisited record count would equal MaxEntries, an inverted condition
// relative to a naive "collect until MaxEntries records remain unseen"
// walk but the one that actually yields the oldest (len-MaxEntries) URLs.
// Returns nil if MaxEntries is unset or the index is within bounds.
func (p *Plugin) FindExtraEntries() ([]string, error) {
	if !p.hasMaxEntries {
		return nil, nil
	}
	total, err := p.index.Count()
	if err != nil {
		return nil, err
	}
	if total <= p.maxEntries {
		return nil, nil
	}

	var urls []string
	visited := 0
	err = p.index.IterateByTimestamp(func(url string, ts int64) bool {
		if total-visited == p.maxEntries {
			return false
		}
		urls = append(urls, url)
		visited++
		return true
	})
	return urls, err
}

// ExpireEntries unions FindOldEntries and FindExtraEntries, deletes every
// resulting URL from both the cache and the index, and returns the URLs
// that were deleted.
func (p *Plugin) ExpireEntries(ctx context.Context, now int64) ([]string, error) {
	oldURLs, err := p.FindOldEntries(now)
	if err != nil {
		return nil, err
	}
	extraURLs, err := p.FindExtraEntries()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(oldURLs)+len(extraURLs))
	urls := make([]string, 0, len(oldURLs)+len(extraURLs))
	for _, list := range [][]string{oldURLs, extraURLs} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}

	p.DeleteFromCacheAndIndex(ctx, urls)

	if p.metrics != nil {
		p.metrics.AddEvictions(p.cache.Name(), "max-age", len(oldURLs))
		p.metrics.AddEvictions(p.cache.Name(), "max-entries", len(extraURLs)-overlap(oldURLs, extraURLs))
		if count, err := p.index.Count(); err == nil {
			p.metrics.SetEntries(p.cache.Name(), count)
		}
	}

	return urls, nil
}

// overlap counts URLs present in both a and b, used to avoid double-counting
// an eviction under both reasons when an entry is both stale and extra.
func overlap(a, b []string) int {
	seen := make(map[string]struct{}, len(a))
	for _, u := range a {
		seen[u] = struct{}{}
	}
	n := 0
	for _, u := range b {
		if _, ok := seen[u]; ok {
			n++
		}
	}
	return n
}

// DeleteFromCacheAndIndex deletes each url from the cache and the index,
// sequentially: the source's concurrent per-url delete does not serialize
// the underlying transactions, and a safe rewrite awaits each in turn.
func (p *Plugin) DeleteFromCacheAndIndex(ctx context.Context, urls []string) {
	for _, u := range urls {
		_, _ = p.cache.DeleteURL(ctx, u)
		_ = p.index.DeleteByURL(u)
	}
}
