package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"storefront-auth/internal/model"
	"storefront-auth/internal/token"
	"storefront-auth/internal/util"
)

// requireHTTPS rejects any request that wasn't made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired) // 426
			w.Write([]byte(`{"success":false,"code":"https_required","message":"https required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the middleware stack and the /api/v1 routes.
func NewRouter(authHandler *AuthHandler, tokens *token.Manager, throttle model.ThrottleStore, logger *zap.Logger, enforceTLS bool) chi.Router {
	router := chi.NewRouter()

	if enforceTLS {
		router.Use(requireHTTPS)
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"storefront-auth"}`))
	})

	authn := Authenticate(tokens)

	router.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimitByIP(throttle, "otp_send", time.Hour, 5)).
			Post("/otp/send", authHandler.SendOTP)
		r.With(RateLimitByIP(throttle, "otp_resend", time.Hour, 3)).
			Post("/otp/resend", authHandler.ResendOTP)
		r.With(RateLimitByIP(throttle, "otp_verify", time.Hour, 10)).
			Post("/otp/verify", authHandler.VerifyOTP)
		r.With(RateLimitByIP(throttle, "signup", time.Hour, 5)).
			Post("/signup", authHandler.SignUp)
		r.With(RateLimitByIP(throttle, "login", time.Hour, 5)).
			Post("/login", authHandler.Login)

		r.Post("/logout", authHandler.Logout)
		r.Post("/token/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.With(RateLimitByUser(throttle, "devices", time.Minute, 30)).
				Get("/devices", authHandler.Devices)
			r.With(RateLimitByUser(throttle, "device_revoke", time.Hour, 10)).
				Delete("/devices/{id}", authHandler.RevokeDevice)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"code":"not_found","message":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"success":false,"code":"method_not_allowed","message":"method not allowed"}`))
	})

	return router
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
