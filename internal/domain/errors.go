package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnimplemented = errors.New("unimplemented")

	// OTP issuance and verification.
	ErrDeliveryFailed   = errors.New("code delivery failed")
	ErrStoreUnavailable = errors.New("code store unavailable")
	ErrExpired          = errors.New("code expired or already used")
	ErrMismatch         = errors.New("code mismatch")

	// ErrRouterClosed is returned to producers once the fanout router has shut down.
	ErrRouterClosed = errors.New("router closed")
)
