package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/callpulse/lead-intake/internal/adapter"
	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/service"
)

// LeadProcessor runs the intake pipeline for one delivery.
type LeadProcessor interface {
	Process(ctx context.Context, source entity.LeadSource, phoneRaw string, fields adapter.FieldMap, rawPayload []byte) (int64, error)
}

// WebhookHandler receives provider webhooks and routes them through the
// source adapter matching the endpoint path.
//
// Response contract expected by the form builders: 200 with {"lead_id": N}
// for accepted leads including duplicates, {"error": msg} otherwise. Test
// traffic is acknowledged with {"ignored": true} so providers do not retry.
type WebhookHandler struct {
	processor LeadProcessor
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(processor LeadProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive handles POST /webhooks/:source requests.
func (h *WebhookHandler) Receive(c echo.Context) error {
	srcAdapter, err := adapter.ForSource(c.Param("source"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to read request body"})
	}

	payload, err := adapter.ParsePayload(c.Request().Header.Get(echo.HeaderContentType), body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to decode payload"})
	}

	if classifier, ok := srcAdapter.(adapter.TestClassifier); ok && classifier.IsTestRequest(payload) {
		return c.JSON(http.StatusOK, map[string]any{"ignored": true})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to serialize payload"})
	}

	phoneRaw := srcAdapter.ExtractPhone(payload)
	fields := srcAdapter.MapFields(payload)

	leadID, err := h.processor.Process(c.Request().Context(), srcAdapter.Source(), phoneRaw, fields, raw)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"lead_id": leadID})
}

func webhookError(c echo.Context, err error) error {
	var invalid *service.PhoneInvalidError
	switch {
	case errors.Is(err, service.ErrPhoneNotFound):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": service.ErrPhoneNotFound.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": invalid.Reason})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to process lead"})
	}
}
