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
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Store is the response cache facade: it opens named handles over a single
// backend Provider. A handle name partitions the Provider's keyspace; the
// same Store, and hence the same underlying Provider, is shared by every
// handle opened from it.
type Store struct {
	backend Provider
}

// NewStore wraps backend as a response cache facade.
func NewStore(backend Provider) *Store {
	return &Store{backend: backend}
}

// Open returns a Handle bound to name. Opening is cheap and idempotent;
// callers (the request wrapper) are expected to memoize the result.
func (s *Store) Open(name string) *Handle {
	return &Handle{name: name, backend: s.backend}
}

// Handle is a named response cache, the open(name) result of §4.B.
type Handle struct {
	name    string
	backend Provider
}

// Name returns the handle's cache name.
func (h *Handle) Name() string { return h.name }

// Match looks up the cached response for req, returning nil if there is no
// cache hit. A hit additionally requires, unless opts.IgnoreVary is set,
// that every header the stored response's Vary recorded at put time still
// matches req's current value for that header.
func (h *Handle) Match(ctx context.Context, req *http.Request, opts MatchOptions) (*http.Response, error) {
	fp := NewFingerprint(h.name, req)
	key := fp.String(opts)
	raw := h.backend.Get(ctx, key)
	if raw == nil && opts.IgnoreSearch {
		// Put always stores under the full key, so compare each stored key
		// of this cache with its query string dropped.
		for _, k := range h.backend.Keys(ctx, h.name+"|") {
			if base, _, _ := strings.Cut(strings.TrimPrefix(k, h.name+"|"), "?"); h.name+"|"+base == key {
				if raw = h.backend.Get(ctx, k); raw != nil {
					break
				}
			}
		}
	}
	if raw == nil {
		return nil, nil
	}

	entry, err := DecodeEntry(raw)
	if err != nil {
		return nil, err
	}

	if !opts.IgnoreVary && !varyMatches(entry.Vary, req) {
		return nil, nil
	}

	return entry.Response()
}

// varyMatches reports whether every header value recorded in vary still
// matches the corresponding header on req.
func varyMatches(vary map[string]string, req *http.Request) bool {
	for name, want := range vary {
		if req.Header.Get(name) != want {
			return false
		}
	}
	return true
}

// Put stores res under req's fingerprint with the given ttl. A ttl of zero
// means no store-layer expiration (left entirely to a plugin such as
// pkg/expiration). varyNames names the response headers, if any, whose
// request-header values must be pinned into the entry for a later
// Vary-aware Match.
func (h *Handle) Put(req *http.Request, res *http.Response, typ ResponseType, varyNames []string, ttl time.Duration, now int64) error {
	vary := make(map[string]string, len(varyNames))
	for _, name := range varyNames {
		vary[name] = req.Header.Get(name)
	}

	entry, err := NewEntry(res, typ, now, vary)
	if err != nil {
		return err
	}

	data, err := entry.Encode()
	if err != nil {
		return err
	}

	fp := NewFingerprint(h.name, req)
	h.backend.Set(fp.String(MatchOptions{}), data, ttl)
	return nil
}

// Delete removes req's cached entry, reporting whether an entry existed.
func (h *Handle) Delete(ctx context.Context, req *http.Request, opts MatchOptions) bool {
	fp := NewFingerprint(h.name, req)
	return h.backend.Delete(ctx, fp.String(opts))
}

// DeleteURL removes the cached GET entry for rawURL, for callers (the
// expiration plugin) that only have a URL string, not the original
// *http.Request, to work from. GET is assumed since that is the only
// method a caching strategy realistically stores.
func (h *Handle) DeleteURL(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	fp := Fingerprint{
		CacheName: h.name,
		Method:    http.MethodGet,
		Scheme:    u.Scheme,
		Host:      u.Host,
		Path:      u.Path,
		Query:     u.Query().Encode(),
	}
	return h.backend.Delete(ctx, fp.String(MatchOptions{})), nil
}
