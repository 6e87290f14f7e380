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
	"time"

	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/wrapper"
)

// NetworkFirst prefers a live network response, falling back to the cache
// either when the network fails or, if a timeout is configured, when the
// network is slower than the timeout and the cache already holds something.
type NetworkFirst struct {
	w       *wrapper.Wrapper
	timeout time.Duration
}

// NewNetworkFirst builds a NetworkFirst handler over w. A zero timeout
// disables the timer race: the handler simply waits for the network.
func NewNetworkFirst(w *wrapper.Wrapper, networkTimeout time.Duration) *NetworkFirst {
	return &NetworkFirst{w: w, timeout: networkTimeout}
}

type netResult struct {
	res *http.Response
	err error
}

func (s *NetworkFirst) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	netCh := make(chan netResult, 1)
	go func() {
		res, err := s.w.FetchAndCache(ctx, req, wrapper.FetchAndCacheOptions{})
		netCh <- netResult{res, err}
	}()

	if s.timeout <= 0 {
		return s.awaitNetwork(ctx, req, netCh)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case r := <-netCh:
		return s.settle(ctx, req, r)
	case <-timer.C:
		// The timer only wins the race if the cache has a response; a
		// timer resolving to "none" must not preempt the network.
		if cached, err := s.w.Match(ctx, req); err == nil && cached != nil {
			wrapper.SetXCache(cached, wrapper.XCacheHit)
			s.w.ObserveStrategy(nameNetworkFirst, metrics.ResultStale)
			return cached, nil
		}
		return s.awaitNetwork(ctx, req, netCh)
	}
}

func (s *NetworkFirst) awaitNetwork(ctx context.Context, req *http.Request, netCh <-chan netResult) (*http.Response, error) {
	return s.settle(ctx, req, <-netCh)
}

func (s *NetworkFirst) settle(ctx context.Context, req *http.Request, r netResult) (*http.Response, error) {
	if r.err == nil {
		wrapper.SetXCache(r.res, wrapper.XCacheMiss)
		s.w.ObserveStrategy(nameNetworkFirst, metrics.ResultMiss)
		return r.res, nil
	}
	cached, matchErr := s.w.Match(ctx, req)
	if matchErr != nil {
		s.w.ObserveStrategy(nameNetworkFirst, metrics.ResultError)
		return nil, matchErr
	}
	if cached != nil {
		wrapper.SetXCache(cached, wrapper.XCacheHit)
		s.w.ObserveStrategy(nameNetworkFirst, metrics.ResultHit)
		return cached, nil
	}
	s.w.ObserveStrategy(nameNetworkFirst, metrics.ResultError)
	return nil, r.err
}
