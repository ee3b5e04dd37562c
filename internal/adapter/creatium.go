package adapter

import "github.com/callpulse/lead-intake/internal/entity"

// CreatiumAdapter handles payloads from the Creatium page builder. Creatium
// has shipped several payload generations: the current nested order.fields
// object with Russian field labels, an older flat fields object, and plain
// top-level keys for the earliest integrations.
type CreatiumAdapter struct{}

func (CreatiumAdapter) Source() entity.LeadSource { return entity.SourceCreatium }

func (CreatiumAdapter) ExtractPhone(p Payload) string {
	return firstString(p,
		[]string{"order", "fields", "Номер телефона"},
		[]string{"order", "fields", "Телефон"},
		[]string{"order", "fields", "phone"},
		[]string{"fields", "phone"},
		[]string{"phone"},
	)
}

func (CreatiumAdapter) MapFields(p Payload) FieldMap {
	fields := newFieldMap()

	fields.set(FieldName, firstString(p,
		[]string{"order", "fields", "Имя"},
		[]string{"order", "fields", "Name"},
		[]string{"order", "fields", "name"},
		[]string{"fields", "name"},
		[]string{"name"},
	))
	fields.set(FieldEmail, normalizeEmail(firstString(p,
		[]string{"order", "fields", "Email"},
		[]string{"order", "fields", "Почта"},
		[]string{"fields", "email"},
		[]string{"email"},
	)))
	fields.set(FieldFormName, firstString(p,
		[]string{"order", "name"},
		[]string{"form", "name"},
	))
	fields.set(FieldUTMSource, firstString(p,
		[]string{"utm", "source"},
		[]string{"utm_source"},
	))
	fields.set(FieldUTMMedium, firstString(p,
		[]string{"utm", "medium"},
		[]string{"utm_medium"},
	))
	fields.set(FieldUTMCampaign, firstString(p,
		[]string{"utm", "campaign"},
		[]string{"utm_campaign"},
	))
	fields.set(FieldUTMTerm, firstString(p,
		[]string{"utm", "term"},
		[]string{"utm_term"},
	))
	fields.set(FieldUTMContent, firstString(p,
		[]string{"utm", "content"},
		[]string{"utm_content"},
	))
	fields.set(FieldReferrer, firstString(p,
		[]string{"visitor", "referrer"},
		[]string{"referrer"},
	))
	fields.set(FieldPageURL, firstString(p,
		[]string{"page", "url"},
		[]string{"url"},
	))
	fields.set(FieldCity, firstString(p,
		[]string{"visitor", "city"},
		[]string{"geo", "city"},
	))
	fields.set(FieldIP, firstString(p,
		[]string{"visitor", "ip"},
		[]string{"ip"},
	))
	fields.set(FieldUserAgent, firstString(p,
		[]string{"visitor", "user_agent"},
		[]string{"user_agent"},
	))

	return fields
}
