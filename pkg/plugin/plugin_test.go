package plugin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kacheio/swcache/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResponse(status int) *http.Response {
	rec := httptest.NewRecorder()
	rec.WriteHeader(status)
	return rec.Result()
}

func TestNewRegistryRejectsMultipleCacheWillUpdate(t *testing.T) {
	_, err := NewRegistry([]Plugin{
		{Name: "a", CacheWillUpdate: func(ctx context.Context, req *http.Request, res *http.Response) (bool, error) {
			return true, nil
		}},
		{Name: "b", CacheWillUpdate: func(ctx context.Context, req *http.Request, res *http.Response) (bool, error) {
			return true, nil
		}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.New(errs.MultipleCacheWillUpdatePlugins, "")))
}

func TestNewRegistryRejectsMultipleCacheWillMatch(t *testing.T) {
	_, err := NewRegistry([]Plugin{
		{Name: "a", CacheWillMatch: func(ctx context.Context, cached *http.Response) (*http.Response, error) {
			return cached, nil
		}},
		{Name: "b", CacheWillMatch: func(ctx context.Context, cached *http.Response) (*http.Response, error) {
			return cached, nil
		}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.New(errs.MultipleCacheWillMatchPlugins, "")))
}

func TestRunRequestWillFetchOrderAndChaining(t *testing.T) {
	var order []string
	registry, err := NewRegistry([]Plugin{
		{Name: "a", RequestWillFetch: func(ctx context.Context, req *http.Request) (*http.Request, error) {
			order = append(order, "a")
			req.Header.Set("X-A", "1")
			return req, nil
		}},
		{Name: "b", RequestWillFetch: func(ctx context.Context, req *http.Request) (*http.Request, error) {
			order = append(order, "b")
			assert.Equal(t, "1", req.Header.Get("X-A"))
			return req, nil
		}},
	})
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "https://example.com", nil)
	out, err := registry.RunRequestWillFetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "1", out.Header.Get("X-A"))
}

func TestRunCacheWillUpdateDefault(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "https://example.com", nil)

	ok, err := registry.RunCacheWillUpdate(context.Background(), req, newResponse(200))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = registry.RunCacheWillUpdate(context.Background(), req, newResponse(500))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunCacheWillMatchAbsentIsIdentity(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)

	res := newResponse(200)
	out, err := registry.RunCacheWillMatch(context.Background(), res)
	require.NoError(t, err)
	assert.Same(t, res, out)
}

func TestRunCacheWillMatchTransformToMiss(t *testing.T) {
	registry, err := NewRegistry([]Plugin{
		{CacheWillMatch: func(ctx context.Context, cached *http.Response) (*http.Response, error) {
			return nil, nil
		}},
	})
	require.NoError(t, err)

	out, err := registry.RunCacheWillMatch(context.Background(), newResponse(200))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRunCacheDidUpdateOrder(t *testing.T) {
	var order []string
	registry, err := NewRegistry([]Plugin{
		{Name: "a", CacheDidUpdate: func(ctx context.Context, cacheName string, oldResponse, newResponse *http.Response) {
			order = append(order, "a")
		}},
		{Name: "b", CacheDidUpdate: func(ctx context.Context, cacheName string, oldResponse, newResponse *http.Response) {
			order = append(order, "b")
		}},
	})
	require.NoError(t, err)

	registry.RunCacheDidUpdate(context.Background(), "cache", nil, newResponse(200))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRunFetchDidFailSwallowsNothingButRunsAll(t *testing.T) {
	count := 0
	registry, err := NewRegistry([]Plugin{
		{FetchDidFail: func(ctx context.Context, req *http.Request) { count++ }},
		{FetchDidFail: func(ctx context.Context, req *http.Request) { count++ }},
	})
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "https://example.com", nil)
	registry.RunFetchDidFail(context.Background(), req)
	assert.Equal(t, 2, count)
}
