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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryEncodeDecodeRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "text/plain")
	rec.WriteHeader(http.StatusOK)
	_, _ = rec.WriteString("hello")
	res := rec.Result()

	entry, err := NewEntry(res, ResponseBasic, 1234, map[string]string{"accept-encoding": "gzip"})
	require.NoError(t, err)

	encoded, err := entry.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEntry(encoded)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), decoded.Timestamp)
	assert.Equal(t, ResponseBasic, decoded.Type)
	assert.Equal(t, "gzip", decoded.Vary["accept-encoding"])

	decodedRes, err := decoded.Response()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, decodedRes.StatusCode)
}

func TestDecodeEntryInvalid(t *testing.T) {
	_, err := DecodeEntry([]byte("not a gob stream"))
	assert.Error(t, err)
}
