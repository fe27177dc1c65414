package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed payload of a session token. Subject carries the identity.
type Claims struct {
	Kind domain.IdentityKind `json:"kind"`
	jwt.RegisteredClaims
}

// Identity returns the identity the session was issued for.
func (c *Claims) Identity() domain.Identity { return domain.Identity(c.Subject) }

// Signer is the keyed-MAC codec sessions are signed with.
type Signer interface {
	Sign(payload []byte) domain.SessionToken
	Verify(payload []byte, signature string) bool
}

type Service interface {
	Issue(id domain.Identifier) (domain.SessionToken, *Claims, error)
	Authenticate(raw string) (*Claims, error)
}

type service struct {
	signer    Signer
	ttl       time.Duration
	now       func() time.Time
	validator *jwt.Validator
}

// NewService returns a stateless session issuer/verifier. Tokens expire ttl after issue.
func NewService(signer Signer, ttl time.Duration) Service {
	return newService(signer, ttl, time.Now)
}

func newService(signer Signer, ttl time.Duration, now func() time.Time) *service {
	return &service{
		signer: signer,
		ttl:    ttl,
		now:    now,
		validator: jwt.NewValidator(
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}
}

func (s *service) Issue(ident domain.Identifier) (domain.SessionToken, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Kind: ident.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(ident.Identity()),
			ID:        id.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return domain.SessionToken{}, nil, fmt.Errorf("marshal session claims: %w", err)
	}
	return s.signer.Sign(payload), claims, nil
}

// Authenticate checks the signature first and only then looks at the claims.
func (s *service) Authenticate(raw string) (*Claims, error) {
	tok, err := domain.ParseSessionToken(raw)
	if err != nil {
		return nil, err
	}
	if !s.signer.Verify(tok.Payload, tok.Signature) {
		return nil, fmt.Errorf("invalid session signature: %w", domain.ErrUnauthorized)
	}
	var claims Claims
	if err := json.Unmarshal(tok.Payload, &claims); err != nil {
		return nil, fmt.Errorf("decode session claims: %w", domain.ErrUnauthorized)
	}
	if err := s.validator.Validate(&claims); err != nil {
		return nil, fmt.Errorf("session claims: %v: %w", err, domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session without subject: %w", domain.ErrUnauthorized)
	}
	return &claims, nil
}
