package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SessionToken is a signed credential: the payload travels in clear, the
// signature is a hex-encoded MAC over it. There is no server-side session table.
type SessionToken struct {
	Payload   []byte
	Signature string
}

// String renders the wire form: base64url(payload) "." hex(signature).
func (t SessionToken) String() string {
	return base64.RawURLEncoding.EncodeToString(t.Payload) + "." + t.Signature
}

// ParseSessionToken splits a wire token. It only checks the shape; the
// signature still has to be verified.
func ParseSessionToken(raw string) (SessionToken, error) {
	enc, sig, ok := strings.Cut(raw, ".")
	if !ok || enc == "" || sig == "" {
		return SessionToken{}, fmt.Errorf("malformed session token: %w", ErrUnauthorized)
	}
	payload, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return SessionToken{}, fmt.Errorf("malformed session token payload: %w", ErrUnauthorized)
	}
	return SessionToken{Payload: payload, Signature: sig}, nil
}
