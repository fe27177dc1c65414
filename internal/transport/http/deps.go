package http

import (
	"github.com/go-fanout-relay/internal/application/otp"
	"github.com/go-fanout-relay/internal/pkg/metrics"
	"github.com/go-fanout-relay/internal/transport/http/handler"
	"github.com/go-fanout-relay/internal/transport/http/middleware"
)

// FanoutRouter is the minimal interface the gateway requires from the fanout router.
type FanoutRouter interface {
	handler.Subscriber
	handler.Publisher
}

// Deps holds the application services the gateway serves.
type Deps struct {
	OTP      otp.Service
	Sessions middleware.Authenticator
	Router   FanoutRouter
	Metrics  *metrics.Metrics
	// Checks back the readiness probe, keyed by dependency name.
	Checks map[string]handler.Check
}
