// Package phone normalizes raw phone strings into the canonical +-prefixed
// form used as the dedup key.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// InvalidError reports why a raw phone string was rejected.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return e.Reason
}

// Normalize validates a raw phone string and returns its canonical form.
//
// Rules, first match wins:
//  1. 11 digits starting with 7  -> "+<digits>"
//  2. 11 digits starting with 8  -> "+7<digits[1:]>" (trunk prefix swap;
//     8999... and 999... must land on the same dedup key)
//  3. 10 digits starting with 9  -> "+7<digits>"
//  4. any other 11 digits        -> "+<digits>" (permissive fallback, kept
//     deliberately loose for test traffic from the form builders)
//
// Everything else is rejected with an *InvalidError. The function is pure.
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", &InvalidError{Reason: "phone number contains no digits"}
	}

	switch {
	case len(digits) == 11 && digits[0] == '7':
		return "+" + digits, nil
	case len(digits) == 11 && digits[0] == '8':
		return "+7" + digits[1:], nil
	case len(digits) == 10 && digits[0] == '9':
		return "+7" + digits, nil
	case len(digits) == 11:
		return "+" + digits, nil
	default:
		return "", &InvalidError{Reason: fmt.Sprintf("expected 10 or 11 digits, got %d", len(digits))}
	}
}

// Annotation carries libphonenumber metadata for an already normalized
// number. It is informational only and never overrides Normalize's verdict.
type Annotation struct {
	Region    string `json:"region,omitempty"`
	E164Valid bool   `json:"e164_valid"`
}

// Annotate inspects a canonical number and reports whether it is a plausible
// E.164 number and which region it belongs to. Numbers accepted by the
// permissive fallback often come back E164Valid=false; that is recorded in
// the processing log, not acted on.
func Annotate(normalized string) Annotation {
	number, err := phonenumbers.Parse(normalized, "")
	if err != nil {
		return Annotation{}
	}
	return Annotation{
		Region:    phonenumbers.GetRegionCodeForNumber(number),
		E164Valid: phonenumbers.IsPossibleNumber(number) && phonenumbers.IsValidNumber(number),
	}
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
