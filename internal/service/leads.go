package service

import (
	"context"

	"github.com/callpulse/lead-intake/internal/dto"
	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/repository"
)

// LeadsService exposes read operations for the admin panel.
type LeadsService struct {
	repo repository.LeadsRepository
}

// LeadDetail bundles a lead with its processing history and dedup audit
// trail for the admin detail view.
type LeadDetail struct {
	Lead            entity.Lead                 `json:"lead"`
	ProcessingLog   []entity.ProcessingLogEntry `json:"processing_log"`
	DuplicateChecks []entity.DuplicateCheck     `json:"duplicate_checks"`
}

// NewLeadsService creates a new instance of LeadsService.
func NewLeadsService(repo repository.LeadsRepository) *LeadsService {
	return &LeadsService{repo: repo}
}

// ListLeads returns leads respecting pagination defaults.
func (s *LeadsService) ListLeads(ctx context.Context, filter dto.LeadFilter) ([]entity.Lead, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	return s.repo.List(ctx, filter)
}

// GetLead returns a lead with its full intake history.
func (s *LeadsService) GetLead(ctx context.Context, id int64) (*LeadDetail, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	logEntries, err := s.repo.ListLog(ctx, id)
	if err != nil {
		return nil, err
	}

	checks, err := s.repo.ListDuplicateChecks(ctx, id)
	if err != nil {
		return nil, err
	}

	return &LeadDetail{Lead: *lead, ProcessingLog: logEntries, DuplicateChecks: checks}, nil
}
