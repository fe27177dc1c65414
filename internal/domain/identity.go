package domain

import (
	"fmt"
	"strings"
)

// Identity is the opaque key a subscriber is addressed by. The fanout router
// never interprets it; it is produced from a verified Identifier.
type Identity string

func (i Identity) String() string { return string(i) }

// IdentityKind enumerates the kinds of identifier a client can prove control of.
type IdentityKind string

const (
	KindEmail IdentityKind = "email"
	KindPhone IdentityKind = "phone"
)

// ParseIdentityKind maps a wire value to a known kind. Anything else is
// reported as ErrUnimplemented so callers can answer instead of failing hard.
func ParseIdentityKind(s string) (IdentityKind, error) {
	switch k := IdentityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindEmail, KindPhone:
		return k, nil
	default:
		return "", fmt.Errorf("identity kind %q: %w", s, ErrUnimplemented)
	}
}

// Identifier is an email address or phone number a client claims to control.
type Identifier struct {
	Kind  IdentityKind `json:"kind"`
	Value string       `json:"value"`
}

// NewIdentifier canonicalises raw for the given kind: emails are trimmed and
// lower-cased, phone numbers have whitespace and separators removed.
func NewIdentifier(kind IdentityKind, raw string) Identifier {
	v := strings.TrimSpace(raw)
	switch kind {
	case KindEmail:
		v = strings.ToLower(v)
	case KindPhone:
		v = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(v)
	}
	return Identifier{Kind: kind, Value: v}
}

// Identity returns the routing key bound to this identifier.
func (id Identifier) Identity() Identity { return Identity(id.Value) }

// CanonicalIdentity canonicalises a bare address, inferring the kind from the
// presence of '@'.
func CanonicalIdentity(raw string) Identity {
	if strings.Contains(raw, "@") {
		return NewIdentifier(KindEmail, raw).Identity()
	}
	return NewIdentifier(KindPhone, raw).Identity()
}
