package adapter

import "github.com/callpulse/lead-intake/internal/entity"

// MarquizAdapter handles quiz completion payloads from Marquiz: contact data
// under contacts, quiz metadata under quiz, and attribution either in
// extra.utm or mirrored into extra.cookies by older quiz versions.
type MarquizAdapter struct{}

func (MarquizAdapter) Source() entity.LeadSource { return entity.SourceMarquiz }

func (MarquizAdapter) ExtractPhone(p Payload) string {
	return firstString(p,
		[]string{"contacts", "phone"},
		[]string{"contact", "phone"},
		[]string{"phone"},
	)
}

func (MarquizAdapter) MapFields(p Payload) FieldMap {
	fields := newFieldMap()

	fields.set(FieldName, firstString(p,
		[]string{"contacts", "name"},
		[]string{"contact", "name"},
		[]string{"name"},
	))
	fields.set(FieldEmail, normalizeEmail(firstString(p,
		[]string{"contacts", "email"},
		[]string{"contact", "email"},
		[]string{"email"},
	)))
	fields.set(FieldQuizID, firstString(p,
		[]string{"quiz", "id"},
		[]string{"quizId"},
	))
	fields.set(FieldQuizName, firstString(p,
		[]string{"quiz", "name"},
		[]string{"quizName"},
	))
	fields.set(FieldUTMSource, firstString(p,
		[]string{"extra", "utm", "source"},
		[]string{"extra", "cookies", "utm_source"},
	))
	fields.set(FieldUTMMedium, firstString(p,
		[]string{"extra", "utm", "medium"},
		[]string{"extra", "cookies", "utm_medium"},
	))
	fields.set(FieldUTMCampaign, firstString(p,
		[]string{"extra", "utm", "campaign"},
		[]string{"extra", "cookies", "utm_campaign"},
	))
	fields.set(FieldUTMTerm, firstString(p,
		[]string{"extra", "utm", "term"},
		[]string{"extra", "cookies", "utm_term"},
	))
	fields.set(FieldUTMContent, firstString(p,
		[]string{"extra", "utm", "content"},
		[]string{"extra", "cookies", "utm_content"},
	))
	fields.set(FieldReferrer, p.String("extra", "referrer"))
	fields.set(FieldPageURL, p.String("extra", "href"))
	fields.set(FieldCity, p.String("extra", "city"))
	fields.set(FieldIP, p.String("extra", "ip"))
	fields.set(FieldUserAgent, p.String("extra", "userAgent"))

	return fields
}
