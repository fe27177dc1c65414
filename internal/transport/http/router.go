package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fanout-relay/internal/config"
	"github.com/go-fanout-relay/internal/transport/http/handler"
	appmiddleware "github.com/go-fanout-relay/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the gateway router. Background work it starts
// stops when ctx ends.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Sessions)
	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.OTPRatePerSecond), cfg.OTPRateBurst)

	healthH := handler.NewHealthHandler(deps.Checks)
	otpH := handler.NewOTPHandler(deps.OTP)
	streamH := handler.NewStreamHandler(deps.Router, cfg.Router.OutboundCapacity, cfg.AllowedOrigins)
	msgH := handler.NewMessageHandler(deps.Router)

	r.Route("/v1", func(r chi.Router) {
		// public
		r.Get("/health-check/{action}", healthH.Ping)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
		r.With(otpRL.Limit).Post("/otp/request", otpH.Request)
		r.With(otpRL.Limit).Post("/otp/verify", otpH.Verify)

		// authenticated
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Get("/stream", streamH.Stream)
			r.Post("/messages", msgH.Send)
		})
	})

	return r
}
