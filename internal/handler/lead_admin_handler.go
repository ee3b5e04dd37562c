package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/callpulse/lead-intake/internal/dto"
	"github.com/callpulse/lead-intake/internal/repository"
	"github.com/callpulse/lead-intake/internal/service"
)

// LeadAdminHandler serves the admin panel's read-only lead views.
type LeadAdminHandler struct {
	leads *service.LeadsService
}

// NewLeadAdminHandler constructs a LeadAdminHandler.
func NewLeadAdminHandler(leads *service.LeadsService) *LeadAdminHandler {
	return &LeadAdminHandler{leads: leads}
}

// List handles GET /admin/leads requests.
func (h *LeadAdminHandler) List(c echo.Context) error {
	filter := dto.LeadFilter{
		Source: c.QueryParam("source"),
		Status: c.QueryParam("status"),
		Phone:  c.QueryParam("phone"),
	}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(c.QueryParam("per_page")); err == nil {
		filter.PerPage = perPage
	}

	leads, err := h.leads.ListLeads(c.Request().Context(), filter)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to list leads")
	}

	return Success(c, http.StatusOK, "leads retrieved", leads)
}

// Get handles GET /admin/leads/:id requests.
func (h *LeadAdminHandler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid lead id")
	}

	detail, err := h.leads.GetLead(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return Error(c, http.StatusNotFound, "lead not found")
		}
		return Error(c, http.StatusInternalServerError, "unable to load lead")
	}

	return Success(c, http.StatusOK, "lead retrieved", detail)
}
