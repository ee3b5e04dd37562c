package adapter

import (
	"strings"

	"github.com/callpulse/lead-intake/internal/entity"
)

// GCKAdapter handles payloads from the GCK callback widget. GCK sends
// contacts either as phones/mails arrays or as single phone/email keys, and
// is the only provider that routinely delivers test traffic, so it also
// implements TestClassifier.
type GCKAdapter struct{}

func (GCKAdapter) Source() entity.LeadSource { return entity.SourceGCK }

func (GCKAdapter) ExtractPhone(p Payload) string {
	if phones := p.Slice("phones"); len(phones) > 0 {
		if value := stringify(phones[0]); value != "" {
			return value
		}
	}
	return firstString(p,
		[]string{"phone"},
		[]string{"client", "phone"},
	)
}

func (g GCKAdapter) MapFields(p Payload) FieldMap {
	fields := newFieldMap()

	fields.set(FieldName, firstString(p,
		[]string{"name"},
		[]string{"client", "name"},
	))
	fields.set(FieldEmail, normalizeEmail(g.extractEmail(p)))
	fields.set(FieldFormName, p.String("widget"))
	fields.set(FieldUTMSource, p.String("utm_source"))
	fields.set(FieldUTMMedium, p.String("utm_medium"))
	fields.set(FieldUTMCampaign, p.String("utm_campaign"))
	fields.set(FieldUTMTerm, p.String("utm_term"))
	fields.set(FieldUTMContent, p.String("utm_content"))
	fields.set(FieldReferrer, p.String("referrer"))
	fields.set(FieldPageURL, firstString(p,
		[]string{"page"},
		[]string{"href"},
	))
	fields.set(FieldCity, p.String("city"))
	fields.set(FieldIP, p.String("ip"))
	fields.set(FieldUserAgent, p.String("user_agent"))

	return fields
}

func (GCKAdapter) extractEmail(p Payload) string {
	if mails := p.Slice("mails"); len(mails) > 0 {
		if value := stringify(mails[0]); value != "" {
			return value
		}
	}
	return p.String("email")
}

// IsTestRequest classifies widget test traffic: empty payloads, an explicit
// test flag, a visitor id with no contact data, or placeholder phone numbers
// (all one digit or shorter than 7 digits).
func (g GCKAdapter) IsTestRequest(p Payload) bool {
	if len(p) == 0 {
		return true
	}
	if p.Bool("test") {
		return true
	}

	phone := g.ExtractPhone(p)
	email := g.extractEmail(p)

	if p.String("vid") != "" && phone == "" && email == "" {
		return true
	}
	if phone != "" && isPlaceholderPhone(phone) {
		return true
	}
	return false
}

func isPlaceholderPhone(phone string) bool {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	value := digits.String()
	if len(value) < 7 {
		return true
	}
	for i := 1; i < len(value); i++ {
		if value[i] != value[0] {
			return false
		}
	}
	return true
}
