package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

// Resolver maps a client IP to a coarse location for the login audit
// trail. Resolution is best effort; it never fails a login.
type Resolver interface {
	Resolve(ctx context.Context, ip string) *model.Location
}

type HTTPResolver struct {
	endpoint string
	cacheTTL time.Duration
	client   *http.Client
	cache    model.GeoCache
}

func NewHTTPResolver(cfg config.GeoIPConfig, cache model.GeoCache) *HTTPResolver {
	return &HTTPResolver{
		endpoint: cfg.Endpoint,
		cacheTTL: cfg.CacheTTL,
		client:   &http.Client{Timeout: cfg.Timeout},
		cache:    cache,
	}
}

type lookupResponse struct {
	Status  string `json:"status"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Resolve returns Local/Development for loopback and private addresses,
// a cached or freshly looked-up location otherwise, and Unknown/Unknown
// when the lookup fails. Failures are not cached.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) *model.Location {
	if isLocalAddress(ip) {
		return &model.Location{City: "Local", Country: "Development"}
	}

	if loc, ok, err := r.cache.Get(ctx, ip); err == nil && ok {
		return loc
	}

	loc, err := r.lookup(ctx, ip)
	if err != nil {
		util.Warn("GeoIP lookup failed",
			zap.String("ip", ip),
			zap.Error(err))
		return &model.Location{City: "Unknown", Country: "Unknown"}
	}

	if err := r.cache.Set(ctx, ip, loc, r.cacheTTL); err != nil {
		util.Warn("Failed to cache GeoIP result", zap.Error(err))
	}

	return loc
}

func (r *HTTPResolver) lookup(ctx context.Context, ip string) (*model.Location, error) {
	url := fmt.Sprintf("%s/%s?fields=status,city,country", r.endpoint, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geoip request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip endpoint returned %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid geoip response: %w", err)
	}

	if body.Status != "success" || body.Country == "" {
		return nil, fmt.Errorf("geoip lookup unsuccessful for %s", ip)
	}

	city := body.City
	if city == "" {
		city = "Unknown"
	}

	return &model.Location{City: city, Country: body.Country}, nil
}

func isLocalAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified()
}
