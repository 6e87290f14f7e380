package cachecontrol

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheabilityPluginAcceptsFreshPublicResponse(t *testing.T) {
	p := CacheabilityPlugin()
	require.NotNil(t, p.CacheWillUpdate)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderCacheControl, "max-age=60")
	rec.WriteHeader(http.StatusOK)
	res := rec.Result()

	ok, err := p.CacheWillUpdate(req.Context(), req, res)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheabilityPluginRejectsNoStore(t *testing.T) {
	p := CacheabilityPlugin()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderCacheControl, "no-store, max-age=60")
	rec.WriteHeader(http.StatusOK)
	res := rec.Result()

	ok, err := p.CacheWillUpdate(req.Context(), req, res)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheabilityPluginRejectsAuthorizedRequest(t *testing.T) {
	p := CacheabilityPlugin()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)
	req.Header.Set(HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderCacheControl, "max-age=60")
	rec.WriteHeader(http.StatusOK)
	res := rec.Result()

	ok, err := p.CacheWillUpdate(req.Context(), req, res)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVaryNamesExtractsHeaderList(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Vary", "Accept-Encoding, Accept-Language")
	rec.WriteHeader(http.StatusOK)
	res := rec.Result()

	assert.ElementsMatch(t, []string{"Accept-Encoding", "Accept-Language"}, VaryNames(res))
}
