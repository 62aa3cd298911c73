package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appWebhook "github.com/rbarroso/clearway/internal/application/webhook"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/middleware"
)

// WebhookController exposes the delivery audit log and manual re-arm.
type WebhookController struct {
	rearm       *appWebhook.RearmUseCase
	webhookRepo webhook.Repository
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(rearm *appWebhook.RearmUseCase, webhookRepo webhook.Repository) *WebhookController {
	return &WebhookController{rearm: rearm, webhookRepo: webhookRepo}
}

// RetryAttempt handles POST /api/v1/webhooks/attempts/{id}/retry
func (h *WebhookController) RetryAttempt(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:        "VALIDATION_ERROR",
			Description: "invalid attempt id",
		}})
		return
	}

	rearmed, err := h.rearm.Execute(r.Context(), merchantID, attemptID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, FromAttempt(rearmed))
}

// ListAttempts handles GET /api/v1/webhooks/attempts
func (h *WebhookController) ListAttempts(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	attempts, err := h.webhookRepo.ListByMerchant(r.Context(), merchantID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*WebhookAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, FromAttempt(a))
	}
	writeJSON(w, http.StatusOK, resp)
}
