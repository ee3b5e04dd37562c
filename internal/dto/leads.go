package dto

// LeadFilter captures query parameters for the admin lead listing.
type LeadFilter struct {
	Source  string
	Status  string
	Phone   string
	Page    int
	PerPage int
}
