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

// Package router dispatches an incoming fetch to the caching strategy bound
// to the request's path, the minimum interface needed to drive the worked
// example in cmd/swcache: a full routing engine (regex/manifest matching)
// is out of scope, per spec.md §1.
package router

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/kacheio/swcache/pkg/strategy"
)

// Router dispatches requests to the strategy.Handler registered for their
// path pattern.
type Router struct {
	mux *mux.Router
}

// New builds an empty Router.
func New() *Router {
	return &Router{mux: mux.NewRouter()}
}

// Handle registers handler for every request matching pattern, a
// gorilla/mux path pattern (e.g. "/api/{id}" or a prefix route built with
// PathPrefix semantics via a trailing "/{rest:.*}").
func (r *Router) Handle(pattern string, handler strategy.Handler) {
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		res, err := handler.Handle(req.Context(), req)
		if err != nil {
			log.Error().Err(err).Str("path", req.URL.Path).Msg("strategy handler failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeResponse(w, res)
	})
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// writeResponse copies res onto w, headers first, the way a real fetch
// event's respondWith(response) would hand the response back to the page.
func writeResponse(w http.ResponseWriter, res *http.Response) {
	defer res.Body.Close()
	for key, values := range res.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	_, _ = io.Copy(w, res.Body)
}
