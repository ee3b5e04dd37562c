package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/callpulse/lead-intake/internal/dto"
	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/repository"
	"github.com/callpulse/lead-intake/internal/service"
)

type stubLeadsRepo struct {
	lastFilter dto.LeadFilter
	lead       *entity.Lead
	log        []entity.ProcessingLogEntry
	checks     []entity.DuplicateCheck
	err        error
}

func (s *stubLeadsRepo) SaveRawLead(ctx context.Context, source entity.LeadSource, rawPayload []byte, phoneRaw string) (int64, error) {
	return 0, nil
}

func (s *stubLeadsRepo) UpdateLead(ctx context.Context, id int64, fields map[string]any) error {
	return nil
}

func (s *stubLeadsRepo) AppendLog(ctx context.Context, leadID int64, step entity.LogStep, status entity.LogStatus, message string, details map[string]any) error {
	return nil
}

func (s *stubLeadsRepo) FindByID(ctx context.Context, id int64) (*entity.Lead, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lead, nil
}

func (s *stubLeadsRepo) List(ctx context.Context, filter dto.LeadFilter) ([]entity.Lead, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return []entity.Lead{{ID: 1, Source: entity.SourceCreatium}}, nil
}

func (s *stubLeadsRepo) ListLog(ctx context.Context, leadID int64) ([]entity.ProcessingLogEntry, error) {
	return s.log, nil
}

func (s *stubLeadsRepo) ListDuplicateChecks(ctx context.Context, leadID int64) ([]entity.DuplicateCheck, error) {
	return s.checks, nil
}

func newLeadAdminHandler(repo repository.LeadsRepository) *LeadAdminHandler {
	return NewLeadAdminHandler(service.NewLeadsService(repo))
}

func TestLeadAdminHandler_List(t *testing.T) {
	repo := &stubLeadsRepo{}
	h := newLeadAdminHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads?source=creatium&status=duplicate&per_page=25", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.lastFilter.Source != "creatium" || repo.lastFilter.Status != "duplicate" {
		t.Fatalf("expected filters applied, got %+v", repo.lastFilter)
	}
	if repo.lastFilter.PerPage != 25 {
		t.Fatalf("expected per_page 25, got %d", repo.lastFilter.PerPage)
	}
	if repo.lastFilter.Page != 1 {
		t.Fatalf("expected default page 1, got %d", repo.lastFilter.Page)
	}

	var payload APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "success" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestLeadAdminHandler_Get(t *testing.T) {
	now := time.Now()
	repo := &stubLeadsRepo{
		lead: &entity.Lead{ID: 5, Source: entity.SourceMarquiz, Status: entity.LeadStatusNew, CreatedAt: now},
		log: []entity.ProcessingLogEntry{
			{LeadID: 5, Step: entity.StepReceived, Status: entity.LogSuccess, CreatedAt: now},
		},
		checks: []entity.DuplicateCheck{{LeadID: 5, Phone: "+79991234567", CheckedAt: now}},
	}
	h := newLeadAdminHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads/5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Data service.LeadDetail `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Lead.ID != 5 || len(payload.Data.ProcessingLog) != 1 || len(payload.Data.DuplicateChecks) != 1 {
		t.Fatalf("unexpected detail: %+v", payload.Data)
	}
}

func TestLeadAdminHandler_GetNotFound(t *testing.T) {
	repo := &stubLeadsRepo{err: repository.ErrLeadNotFound}
	h := newLeadAdminHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads/99", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLeadAdminHandler_GetBadID(t *testing.T) {
	h := newLeadAdminHandler(&stubLeadsRepo{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
