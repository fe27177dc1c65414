package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-fanout-relay/internal/application/session"
	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/pkg/metrics"
	"github.com/go-fanout-relay/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// CodeStore is a key-value store with per-key expiry. CheckAndDelete must be
// atomic: it removes key only while it still holds expected.
type CodeStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	CheckAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, fromName, to, subject, body string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SessionIssuer mints the session token handed out after a successful verification.
type SessionIssuer interface {
	Issue(id domain.Identifier) (domain.SessionToken, *session.Claims, error)
}

// Config holds the issuance policy. All fields are required.
type Config struct {
	CodeLength      int
	TTL             time.Duration
	HashCost        int
	MailFromName    string
	MailSubject     string
	DeliveryTimeout time.Duration
}

// ServiceDeps groups the collaborators of the OTP service. SMSSender and
// Metrics may be nil; without an SMS sender phone identifiers are unimplemented.
type ServiceDeps struct {
	Store     CodeStore
	Mailer    Mailer
	SMSSender SMSSender
	Sessions  SessionIssuer
	Metrics   *metrics.Metrics
	Config    Config
}

// VerifyResult is returned on a successful verification.
type VerifyResult struct {
	Token  domain.SessionToken
	Claims *session.Claims
}

type Service interface {
	RequestCode(ctx context.Context, id domain.Identifier) error
	VerifyCode(ctx context.Context, id domain.Identifier, code string) (*VerifyResult, error)
}

type service struct {
	store     CodeStore
	mailer    Mailer
	smsSender SMSSender
	sessions  SessionIssuer
	metrics   *metrics.Metrics
	cfg       Config
	newCode   func(n int) (string, error)
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:     deps.Store,
		mailer:    deps.Mailer,
		smsSender: deps.SMSSender,
		sessions:  deps.Sessions,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
		newCode:   generateCode,
	}
}

const withdrawTimeout = 5 * time.Second

type deliverFunc func(ctx context.Context, to, code string) error

// RequestCode stores a fresh code for id, replacing any outstanding one, and
// sends it. If sending fails the stored code is withdrawn again.
func (s *service) RequestCode(ctx context.Context, id domain.Identifier) error {
	if err := validate.Identifier(id); err != nil {
		return err
	}
	deliver, err := s.deliverer(id.Kind)
	if err != nil {
		return err
	}

	code, err := s.newCode(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	key := codeKey(id)
	if err := s.store.Set(ctx, key, string(hash), s.cfg.TTL); err != nil {
		return fmt.Errorf("%w: store code: %v", domain.ErrStoreUnavailable, err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()
	if err := deliver(dctx, id.Value, code); err != nil {
		s.withdraw(ctx, key, string(hash), id)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	s.metrics.IncCodesIssued()
	slog.Info("verification code sent", "kind", id.Kind, "identity", id.Value, "ttl", s.cfg.TTL)
	return nil
}

// withdraw removes an undelivered code. It outlives a cancelled request.
func (s *service) withdraw(ctx context.Context, key, hash string, id domain.Identifier) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), withdrawTimeout)
	defer cancel()
	if _, err := s.store.CheckAndDelete(wctx, key, hash); err != nil {
		slog.Warn("failed to withdraw undelivered code", "identity", id.Value, "err", err)
	}
}

// VerifyCode consumes the stored code for id if code matches it. Of several
// concurrent attempts with the right code only one wins; the rest see ErrExpired.
func (s *service) VerifyCode(ctx context.Context, id domain.Identifier, code string) (*VerifyResult, error) {
	if err := validate.Identifier(id); err != nil {
		return nil, err
	}
	key := codeKey(id)

	stored, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read code: %v", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		s.metrics.IncCodesRejected()
		return nil, fmt.Errorf("no outstanding code for %s: %w", id.Value, domain.ErrExpired)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(strings.TrimSpace(code))) != nil {
		s.metrics.IncCodesRejected()
		return nil, fmt.Errorf("code for %s: %w", id.Value, domain.ErrMismatch)
	}

	consumed, err := s.store.CheckAndDelete(ctx, key, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: consume code: %v", domain.ErrStoreUnavailable, err)
	}
	if !consumed {
		s.metrics.IncCodesRejected()
		return nil, fmt.Errorf("code for %s already used: %w", id.Value, domain.ErrExpired)
	}

	tok, claims, err := s.sessions.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.metrics.IncCodesVerified()
	return &VerifyResult{Token: tok, Claims: claims}, nil
}

func (s *service) deliverer(kind domain.IdentityKind) (deliverFunc, error) {
	switch kind {
	case domain.KindEmail:
		return func(ctx context.Context, to, code string) error {
			return s.mailer.Send(ctx, s.cfg.MailFromName, to, s.cfg.MailSubject, s.body(code))
		}, nil
	case domain.KindPhone:
		if s.smsSender == nil {
			return nil, fmt.Errorf("phone verification is not configured: %w", domain.ErrUnimplemented)
		}
		return func(ctx context.Context, to, code string) error {
			return s.smsSender.SendSMS(ctx, to, s.body(code))
		}, nil
	default:
		return nil, fmt.Errorf("identity kind %q: %w", kind, domain.ErrUnimplemented)
	}
}

func (s *service) body(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in %s.", code, s.cfg.TTL)
}

func codeKey(id domain.Identifier) string {
	return "otp:" + string(id.Identity())
}

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCode(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
