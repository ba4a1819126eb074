// Package validation checks user-supplied labels before they reach the
// commodity catalog.
package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Aidin1998/commodex/pkg/errors"
)

// Validator rejects labels carrying markup or control characters. Safe for
// concurrent use.
type Validator struct {
	sanitizer *bluemonday.Policy
}

// NewValidator creates a validator with a strict HTML policy
func NewValidator() *Validator {
	return &Validator{sanitizer: bluemonday.StrictPolicy()}
}

// Label checks one display label. Empty values pass; emptiness is the
// registry's rule to enforce.
func (v *Validator) Label(field, value string) error {
	for _, r := range value {
		if unicode.IsControl(r) {
			return errors.ErrInvalidArgument.Explain("invalid %s", field).WithField(field, "must not contain control characters")
		}
	}
	if html.UnescapeString(v.sanitizer.Sanitize(value)) != value {
		return errors.ErrInvalidArgument.Explain("invalid %s", field).WithField(field, "must not contain markup")
	}
	return nil
}

// Symbol checks a ticker symbol: a label without spaces.
func (v *Validator) Symbol(value string) error {
	if err := v.Label("symbol", value); err != nil {
		return err
	}
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return errors.ErrInvalidArgument.Explain("invalid symbol").WithField("symbol", "must not contain spaces")
	}
	return nil
}
