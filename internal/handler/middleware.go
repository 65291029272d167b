package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/model"
	"storefront-auth/internal/token"
	"storefront-auth/internal/util"
)

type contextKey string

const claimsKey contextKey = "claims"

func claimsFrom(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsKey).(*token.Claims)
	return claims
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Authenticate requires a valid access token and stashes its claims in
// the request context.
func Authenticate(tokens *token.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w)
				return
			}

			claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "), token.TypeAccess)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitByIP caps a route per client IP. Throttle store failures
// fail closed.
func RateLimitByIP(store model.ThrottleStore, route string, window time.Duration, max int64) func(http.Handler) http.Handler {
	return rateLimit(store, route, window, max, func(r *http.Request) string {
		return clientIP(r)
	})
}

// RateLimitByUser caps a route per authenticated user; it must sit after
// Authenticate in the chain.
func RateLimitByUser(store model.ThrottleStore, route string, window time.Duration, max int64) func(http.Handler) http.Handler {
	return rateLimit(store, route, window, max, func(r *http.Request) string {
		if claims := claimsFrom(r.Context()); claims != nil {
			return claims.UserID
		}
		return clientIP(r)
	})
}

func rateLimit(store model.ThrottleStore, route string, window time.Duration, max int64, subject func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "rate_limit:" + route + ":" + subject(r)

			allowed, count, err := store.IncrementAndCheck(r.Context(), key, window, max)
			if err != nil {
				util.Error("Rate limit check failed",
					zap.String("route", route),
					zap.Error(err))
				writeEnvelope(w, http.StatusInternalServerError, envelope{
					Success: false,
					Code:    codeInternal,
					Message: msgInternal,
				})
				return
			}
			if !allowed {
				util.Warn("Route rate limited",
					zap.String("route", route),
					zap.Int64("count", count))
				w.Header().Set("Retry-After", "60")
				writeEnvelope(w, http.StatusTooManyRequests, envelope{
					Success: false,
					Code:    codeRateLimited,
					Message: msgRateLimited,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
