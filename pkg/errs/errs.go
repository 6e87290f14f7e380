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

// Package errs holds the stable error identifiers constructors across the
// wrapper, strategy and expiration packages fail with, plus a few argument
// assertion helpers used at construction time.
package errs

import "fmt"

// Code is one of the stable error-identifier strings used in test
// assertions and, where surfaced, in plugin-facing error messages.
type Code string

const (
	MultipleCacheWillUpdatePlugins Code = "multiple-cache-will-update-plugins"
	MultipleCacheWillMatchPlugins  Code = "multiple-cache-will-match-plugins"
	MaxEntriesOrAgeRequired        Code = "max-entries-or-age-required"
	MaxEntriesMustBeNumber         Code = "max-entries-must-be-number"
	MaxAgeSecondsMustBeNumber      Code = "max-age-seconds-must-be-number"
	InvalidResponseForCaching      Code = "invalid-response-for-caching"
	NoResponseReceived             Code = "no-response-received"
)

// Error is a typed error carrying one of the Code identifiers above, so
// call sites can match on it with errors.Is/errors.As while the identifier
// string itself stays stable for tests and logs.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same Code, so errors.Is(err,
// New(SomeCode)) works without comparing messages.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// New constructs an *Error for code with an optional formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AssertAtMostOneTransformPlugin fails construction when more than one
// plugin registers the named transform hook (cacheWillUpdate / cacheWillMatch).
func AssertAtMostOneTransformPlugin(count int, code Code, hookName string) error {
	if count > 1 {
		return New(code, "only one plugin may implement %s", hookName)
	}
	return nil
}

// AssertMaxEntriesOrAge fails construction of the expiration plugin unless
// at least one of maxEntries/maxAgeSeconds was provided.
func AssertMaxEntriesOrAge(hasMaxEntries, hasMaxAgeSeconds bool) error {
	if !hasMaxEntries && !hasMaxAgeSeconds {
		return New(MaxEntriesOrAgeRequired, "one of maxEntries or maxAgeSeconds is required")
	}
	return nil
}
