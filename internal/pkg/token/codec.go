// Package token signs and verifies opaque payloads with a process-wide secret.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/go-fanout-relay/internal/domain"
)

// Codec is a keyed-MAC signer/verifier (HMAC-SHA256, hex-encoded signatures).
// Sign and Verify must share the secret: changing it invalidates every token
// issued so far.
// TODO: support a secondary verification key so the secret can be rotated.
type Codec struct {
	secret []byte
}

// NewCodec copies secret; the codec never mutates it afterwards.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec: empty secret")
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// Sign pairs payload with its hex-encoded MAC.
func (c *Codec) Sign(payload []byte) domain.SessionToken {
	return domain.SessionToken{
		Payload:   append([]byte(nil), payload...),
		Signature: hex.EncodeToString(c.mac(payload)),
	}
}

// Verify recomputes the MAC over payload and compares it with signature in
// constant time. A signature that is not valid hex simply fails.
func (c *Codec) Verify(payload []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, c.mac(payload))
}

func (c *Codec) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write(payload)
	return m.Sum(nil)
}
