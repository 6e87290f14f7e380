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

package cachecontrol

import (
	"context"
	"net/http"

	"github.com/kacheio/swcache/pkg/plugin"
)

// CacheabilityPlugin adapts IsCacheableRequest/IsCacheableResponse into the
// optional, richer cacheWillUpdate default: a response is cacheable only if
// both the request qualifies (no conditional/Authorization headers, a
// cacheable method) and the response's own Cache-Control header permits
// storage. This is stricter than and replaces, not augments, spec's plain
// response.ok rule when registered; a wrapper with no plugins still falls
// back to response.ok as §4.D requires.
func CacheabilityPlugin() plugin.Plugin {
	return plugin.Plugin{
		Name: "cachecontrol",
		CacheWillUpdate: func(ctx context.Context, req *http.Request, res *http.Response) (bool, error) {
			return IsCacheableRequest(req) && IsCacheableResponse(res), nil
		},
	}
}

// VaryNames extracts the header names listed in res's Vary header, in the
// form wrapper.FetchAndCacheOptions.VaryNames expects.
func VaryNames(res *http.Response) []string {
	return varyValues(res.Header)
}
