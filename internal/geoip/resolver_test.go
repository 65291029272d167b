package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-auth/internal/config"
	"storefront-auth/internal/model"
)

type fakeGeoCache struct {
	mu   sync.Mutex
	data map[string]*model.Location
}

func newFakeGeoCache() *fakeGeoCache {
	return &fakeGeoCache{data: make(map[string]*model.Location)}
}

func (c *fakeGeoCache) Get(ctx context.Context, ip string) (*model.Location, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.data[ip]
	return loc, ok, nil
}

func (c *fakeGeoCache) Set(ctx context.Context, ip string, loc *model.Location, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[ip] = loc
	return nil
}

func newResolver(endpoint string, cache model.GeoCache) *HTTPResolver {
	return NewHTTPResolver(config.GeoIPConfig{
		Endpoint: endpoint,
		Timeout:  time.Second,
		CacheTTL: 24 * time.Hour,
	}, cache)
}

func TestResolveLoopback(t *testing.T) {
	r := newResolver("http://127.0.0.1:1", newFakeGeoCache())

	for _, ip := range []string{"127.0.0.1", "::1", "192.168.1.10", "10.0.0.5"} {
		loc := r.Resolve(context.Background(), ip)
		assert.Equal(t, "Local", loc.City, ip)
		assert.Equal(t, "Development", loc.Country, ip)
	}
}

func TestResolveSuccessAndCache(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"success","city":"Tehran","country":"Iran"}`))
	}))
	defer ts.Close()

	cache := newFakeGeoCache()
	r := newResolver(ts.URL, cache)

	loc := r.Resolve(context.Background(), "5.160.1.1")
	require.Equal(t, "Tehran", loc.City)
	require.Equal(t, "Iran", loc.Country)

	// Second resolve is served from the cache.
	loc = r.Resolve(context.Background(), "5.160.1.1")
	assert.Equal(t, "Tehran", loc.City)
	assert.Equal(t, 1, calls)
}

func TestResolveFailureReturnsUnknown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}))
	defer ts.Close()

	cache := newFakeGeoCache()
	r := newResolver(ts.URL, cache)

	loc := r.Resolve(context.Background(), "203.0.113.9")
	assert.Equal(t, "Unknown", loc.City)
	assert.Equal(t, "Unknown", loc.Country)
	assert.Empty(t, cache.data, "failed lookups are not cached")
}

func TestResolveEndpointUnreachable(t *testing.T) {
	r := newResolver("http://127.0.0.1:1", newFakeGeoCache())

	loc := r.Resolve(context.Background(), "203.0.113.9")
	assert.Equal(t, "Unknown", loc.City)
	assert.Equal(t, "Unknown", loc.Country)
}
