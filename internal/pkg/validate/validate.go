package validate

import (
	"fmt"
	"strings"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// identifierRules maps each identity kind to the validator tag its value must satisfy.
var identifierRules = map[domain.IdentityKind]string{
	domain.KindEmail: "required,email",
	domain.KindPhone: "required,e164",
}

// Identifier checks that id.Value is well-formed for its kind.
// Kinds without a rule are reported as domain.ErrUnimplemented.
func Identifier(id domain.Identifier) error {
	rule, ok := identifierRules[id.Kind]
	if !ok {
		return fmt.Errorf("identity kind %q: %w", id.Kind, domain.ErrUnimplemented)
	}
	if err := v.Var(id.Value, rule); err != nil {
		return fmt.Errorf("invalid %s %q: %w", id.Kind, id.Value, domain.ErrBadRequest)
	}
	return nil
}
