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

package cachestore

import (
	"fmt"
	"net/http"
	"net/url"

	xxhash "github.com/cespare/xxhash/v2"
)

// MatchOptions mirrors the platform CacheStorage match options: each flag
// relaxes one dimension of the default method+URL+Vary fingerprint match.
type MatchOptions struct {
	IgnoreSearch bool
	IgnoreMethod bool
	IgnoreVary   bool
}

// Fingerprint is the request fingerprint used as the response cache key: by
// default the method, scheme, host, path and query of the outbound request.
// A strategy may substitute an alternative cacheKey request when storing,
// so Fingerprint is derived independently of any particular *http.Request
// instance held elsewhere.
type Fingerprint struct {
	CacheName string
	Method    string
	Scheme    string
	Host      string
	Path      string
	Query     string
}

// NewFingerprint derives a Fingerprint from the given request, scoped to cacheName.
func NewFingerprint(cacheName string, req *http.Request) Fingerprint {
	fp := Fingerprint{
		CacheName: cacheName,
		Method:    req.Method,
		Host:      req.Host,
		Path:      req.URL.Path,
		Query:     req.URL.Query().Encode(),
		Scheme:    req.URL.Scheme,
	}
	if fp.Scheme == "" {
		if req.TLS == nil {
			fp.Scheme = "http"
		} else {
			fp.Scheme = "https"
		}
	}
	return fp
}

// String encodes the fingerprint as the string used for the backing store key.
func (f Fingerprint) String(opts MatchOptions) string {
	u := url.URL{Scheme: f.Scheme, Host: f.Host, Path: f.Path}
	if !opts.IgnoreSearch {
		u.RawQuery = f.Query
	}
	method := f.Method
	if opts.IgnoreMethod {
		method = "*"
	}
	return fmt.Sprintf("%s|%s%s", f.CacheName, method, u.String())
}

// URL reconstructs the request URL the fingerprint was derived from,
// including the query string regardless of IgnoreSearch (used by the
// timestamp index, which keys on URL, not on the store key).
func (f Fingerprint) URL() string {
	u := url.URL{Scheme: f.Scheme, Host: f.Host, Path: f.Path, RawQuery: f.Query}
	return u.String()
}

// Hash produces a stable hash of the fingerprint's store key, consistent
// across restarts, architectures and builds.
func (f Fingerprint) Hash(opts MatchOptions) uint64 {
	return xxhash.Sum64([]byte(f.String(opts)))
}
