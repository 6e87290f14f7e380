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

// Package metrics registers the Prometheus collectors a cache worker
// exposes: strategy outcomes, eviction counts, and fetch latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels strategyRequestsTotal's "result" dimension.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
	ResultError = "error"
)

// Metrics holds the counters and histograms a Wrapper/Handler records
// against, all registered on construction against the given Registerer.
type Metrics struct {
	strategyRequests *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	cacheEntries     *prometheus.GaugeVec
	evictions        *prometheus.CounterVec
}

// New registers a Metrics set on reg. Pass prometheus.DefaultRegisterer
// to publish on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		strategyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swcache",
			Name:      "strategy_requests_total",
			Help:      "Total number of strategy handler invocations by cache, strategy and result.",
		}, []string{"cache", "strategy", "result"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swcache",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of network fetches issued by the request wrapper.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"cache"}),
		cacheEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "swcache",
			Name:      "cache_entries",
			Help:      "Current number of entries tracked by the expiration index.",
		}, []string{"cache"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swcache",
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted by the expiration plugin, by reason.",
		}, []string{"cache", "reason"}),
	}
}

// ObserveStrategy records a handler outcome for cache.
func (m *Metrics) ObserveStrategy(cache, strategy, result string) {
	m.strategyRequests.WithLabelValues(cache, strategy, result).Inc()
}

// ObserveFetch records how long a network round trip for cache took.
func (m *Metrics) ObserveFetch(cache string, d time.Duration) {
	m.fetchDuration.WithLabelValues(cache).Observe(d.Seconds())
}

// SetEntries reports the current entry count for cache.
func (m *Metrics) SetEntries(cache string, n int) {
	m.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// AddEvictions reports count entries evicted from cache for reason
// ("max-entries" or "max-age").
func (m *Metrics) AddEvictions(cache, reason string, count int) {
	if count <= 0 {
		return
	}
	m.evictions.WithLabelValues(cache, reason).Add(float64(count))
}
