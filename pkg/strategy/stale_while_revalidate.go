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

package strategy

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/wrapper"
)

// StaleWhileRevalidate runs a cache match and a network fetch in parallel and
// answers from the cache when it holds a response, otherwise from the
// network. Handle returns only once both branches have finished, so a cache
// hit still waits for the network fetch; the fetch's cache write then
// continues in the background either way.
type StaleWhileRevalidate struct {
	w *wrapper.Wrapper
}

// NewStaleWhileRevalidate builds a StaleWhileRevalidate handler over w.
func NewStaleWhileRevalidate(w *wrapper.Wrapper) *StaleWhileRevalidate {
	return &StaleWhileRevalidate{w: w}
}

func (s *StaleWhileRevalidate) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	var cached, fetched *http.Response
	var fetchErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.w.Match(gctx, req)
		cached = res
		return err
	})
	g.Go(func() error {
		// The network branch runs against ctx, not gctx: its background
		// cache write must outlive this call and is never cancelled by
		// the match branch's errgroup context.
		res, err := s.w.FetchAndCache(ctx, req, wrapper.FetchAndCacheOptions{WaitOnCache: false})
		fetched, fetchErr = res, err
		return nil
	})

	if err := g.Wait(); err != nil {
		s.w.ObserveStrategy(nameStaleWhileRevalidate, metrics.ResultError)
		return nil, err
	}
	if cached != nil {
		wrapper.SetXCache(cached, wrapper.XCacheHit)
		s.w.ObserveStrategy(nameStaleWhileRevalidate, metrics.ResultStale)
		return cached, nil
	}
	if fetchErr != nil {
		s.w.ObserveStrategy(nameStaleWhileRevalidate, metrics.ResultError)
		return nil, fetchErr
	}
	wrapper.SetXCache(fetched, wrapper.XCacheMiss)
	s.w.ObserveStrategy(nameStaleWhileRevalidate, metrics.ResultMiss)
	return fetched, nil
}
