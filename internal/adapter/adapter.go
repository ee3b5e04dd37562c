// Package adapter maps provider-specific webhook payloads onto the canonical
// lead field set. One adapter per provider, routed by endpoint path.
package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/callpulse/lead-intake/internal/entity"
)

// Canonical field names every adapter must account for. MapFields returns a
// map containing each of these keys; unknown fields stay nil so storage can
// tell "explicitly absent" from "adapter never looked".
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldQuizID      = "quiz_id"
	FieldQuizName    = "quiz_name"
	FieldFormName    = "form_name"
	FieldUTMSource   = "utm_source"
	FieldUTMMedium   = "utm_medium"
	FieldUTMCampaign = "utm_campaign"
	FieldUTMTerm     = "utm_term"
	FieldUTMContent  = "utm_content"
	FieldReferrer    = "referrer"
	FieldPageURL     = "page_url"
	FieldCity        = "city"
	FieldIP          = "ip"
	FieldUserAgent   = "user_agent"
)

// CanonicalFields lists every key a FieldMap must contain.
var CanonicalFields = []string{
	FieldName, FieldEmail, FieldQuizID, FieldQuizName, FieldFormName,
	FieldUTMSource, FieldUTMMedium, FieldUTMCampaign, FieldUTMTerm,
	FieldUTMContent, FieldReferrer, FieldPageURL, FieldCity, FieldIP,
	FieldUserAgent,
}

// FieldMap is the canonical field set extracted from a payload. Every
// canonical key is present; nil means the adapter found no value.
type FieldMap map[string]*string

// SourceAdapter extracts the phone and canonical fields from a provider
// payload.
type SourceAdapter interface {
	Source() entity.LeadSource
	ExtractPhone(p Payload) string
	MapFields(p Payload) FieldMap
}

// TestClassifier is implemented by adapters whose provider is known to send
// test traffic that must be rejected before persistence.
type TestClassifier interface {
	IsTestRequest(p Payload) bool
}

// ForSource resolves the adapter registered for a webhook path segment.
func ForSource(source string) (SourceAdapter, error) {
	switch entity.LeadSource(strings.ToLower(source)) {
	case entity.SourceCreatium:
		return CreatiumAdapter{}, nil
	case entity.SourceGCK:
		return GCKAdapter{}, nil
	case entity.SourceMarquiz:
		return MarquizAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown webhook source %q", source)
	}
}

func newFieldMap() FieldMap {
	fields := make(FieldMap, len(CanonicalFields))
	for _, key := range CanonicalFields {
		fields[key] = nil
	}
	return fields
}

func (f FieldMap) set(key, value string) {
	if value == "" {
		return
	}
	v := value
	f[key] = &v
}

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)

// normalizeEmail lowercases an address and converts an internationalized
// domain to punycode; it returns "" for anything that does not look like a
// deliverable address.
func normalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	domain, err := idna.Lookup.ToASCII(email[at+1:])
	if err != nil || domain == "" {
		return ""
	}
	email = email[:at+1] + domain
	if !emailPattern.MatchString(email) {
		return ""
	}
	return email
}
