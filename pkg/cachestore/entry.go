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
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"net/http/httputil"
)

// ResponseType mirrors the platform Response.type discriminant. Opaque
// responses are unreadable cross-origin bodies: they cannot be
// freshness-checked and are always treated as fresh.
type ResponseType string

const (
	ResponseBasic  ResponseType = "basic"
	ResponseCORS   ResponseType = "cors"
	ResponseOpaque ResponseType = "opaque"
)

// Entry is a cache entry: a request fingerprint's stored response plus the
// bookkeeping a response facade needs to reconstruct an *http.Response
// without re-consuming the original body.
type Entry struct {
	// Body is the dumped HTTP response (status line, headers, body), as
	// produced by httputil.DumpResponse.
	Body []byte

	// Type is the response's CORS-visibility classification.
	Type ResponseType

	// Timestamp is the time (ms since epoch) the entry was stored.
	Timestamp int64

	// Vary holds the values, as of the storing request, of every header
	// named by the response's Vary header. A later match is only a hit
	// if these values are unchanged, unless MatchOptions.IgnoreVary is set.
	Vary map[string]string
}

// NewEntry captures res into a storable Entry. res's body is consumed and
// replaced with a fresh reader so the caller can still use res afterwards.
// vary holds the storing request's header values named by res's Vary header.
func NewEntry(res *http.Response, typ ResponseType, timestamp int64, vary map[string]string) (*Entry, error) {
	dump, err := httputil.DumpResponse(res, true)
	if err != nil {
		return nil, err
	}
	return &Entry{Body: dump, Type: typ, Timestamp: timestamp, Vary: vary}, nil
}

// Encode encodes an entry into a byte array for storage.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEntry decodes a byte array into an Entry.
func DecodeEntry(data []byte) (*Entry, error) {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	var entry *Entry
	if err := dec.Decode(&entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Response reconstructs an *http.Response from the entry. The result carries
// no Request: http.ReadResponse is called with a nil request.
func (e *Entry) Response() (*http.Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(e.Body)), nil)
	if err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return res, nil
}
