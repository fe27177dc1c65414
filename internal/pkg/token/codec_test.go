package token

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	return c
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.Error(t, err)
}

func TestCodec_SignVerify(t *testing.T) {
	c := newCodec(t)
	for i := 0; i < 50; i++ {
		p := []byte(fmt.Sprintf("user-%d@example.com", i))
		tok := c.Sign(p)
		assert.True(t, c.Verify(p, tok.Signature), string(p))
	}
}

func TestCodec_EmptyPayload(t *testing.T) {
	c := newCodec(t)
	tok := c.Sign(nil)
	assert.True(t, c.Verify([]byte{}, tok.Signature))
}

func TestCodec_DifferentPayloadFails(t *testing.T) {
	c := newCodec(t)
	tok := c.Sign([]byte("alice@example.com"))
	assert.False(t, c.Verify([]byte("bob@example.com"), tok.Signature))
}

func TestCodec_FlippedHexCharFails(t *testing.T) {
	c := newCodec(t)
	p := []byte("alice@example.com")
	sig := []byte(c.Sign(p).Signature)
	for i := range sig {
		flipped := append([]byte(nil), sig...)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}
		assert.False(t, c.Verify(p, string(flipped)), "position %d", i)
	}
}

func TestCodec_MalformedHexFails(t *testing.T) {
	c := newCodec(t)
	p := []byte("alice@example.com")
	assert.False(t, c.Verify(p, "zz"))
	assert.False(t, c.Verify(p, "abc"))
	assert.False(t, c.Verify(p, ""))
}

func TestCodec_OtherSecretFails(t *testing.T) {
	c := newCodec(t)
	other, err := NewCodec([]byte("another-secret"))
	require.NoError(t, err)
	p := []byte("alice@example.com")
	assert.False(t, other.Verify(p, c.Sign(p).Signature))
}

func TestCodec_SecretCopied(t *testing.T) {
	secret := []byte("mutable")
	c, err := NewCodec(secret)
	require.NoError(t, err)
	tok := c.Sign([]byte("p"))
	secret[0] = 'X'
	assert.True(t, c.Verify([]byte("p"), tok.Signature))
}
