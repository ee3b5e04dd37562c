package entity

import (
	"encoding/json"
	"time"
)

// LeadSource identifies the external form/quiz provider that delivered a lead.
type LeadSource string

const (
	SourceCreatium LeadSource = "creatium"
	SourceGCK      LeadSource = "gck"
	SourceMarquiz  LeadSource = "marquiz"
)

// LeadStatus tracks a lead through the intake pipeline and downstream sync.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusDuplicate  LeadStatus = "duplicate"
	LeadStatusProcessing LeadStatus = "processing"
	LeadStatusSent       LeadStatus = "sent"
	LeadStatusFailed     LeadStatus = "failed"
)

// ValidationStatus records the outcome of phone validation for a lead.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// Lead represents one inbound webhook submission.
// Phone is populated only after successful validation; until then only
// PhoneRaw carries what the provider sent.
type Lead struct {
	ID               int64            `json:"id"`
	Source           LeadSource       `json:"source"`
	RawPayload       json.RawMessage  `json:"raw_payload"`
	PhoneRaw         *string          `json:"phone_raw,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	Name             *string          `json:"name,omitempty"`
	Email            *string          `json:"email,omitempty"`
	Fields           json.RawMessage  `json:"fields"`
	Status           LeadStatus       `json:"status"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	IsDuplicate      bool             `json:"is_duplicate"`
	DuplicateOfID    *int64           `json:"duplicate_of_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
