package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appRefund "github.com/rbarroso/clearway/internal/application/refund"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/middleware"
)

// RefundController handles refund-related HTTP requests.
type RefundController struct {
	createRefund *appRefund.CreateRefundUseCase
	paymentRepo  payment.Repository
	refundRepo   refund.Repository
}

// NewRefundController creates a new RefundController.
func NewRefundController(
	createRefund *appRefund.CreateRefundUseCase,
	paymentRepo payment.Repository,
	refundRepo refund.Repository,
) *RefundController {
	return &RefundController{
		createRefund: createRefund,
		paymentRepo:  paymentRepo,
		refundRepo:   refundRepo,
	}
}

// CreateRefund handles POST /api/v1/payments/{id}/refunds
func (h *RefundController) CreateRefund(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:        "VALIDATION_ERROR",
			Description: "invalid payment id",
		}})
		return
	}

	var req CreateRefundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.createRefund.Execute(r.Context(), appRefund.CreateRefundRequest{
		MerchantID:     merchantID,
		PaymentID:      paymentID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Replayed {
		w.Header().Set("X-Idempotency-Replayed", "true")
	}
	writeRaw(w, result.ResponseStatus, result.ResponseBody)
}

// ListRefunds handles GET /api/v1/payments/{id}/refunds
func (h *RefundController) ListRefunds(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:        "VALIDATION_ERROR",
			Description: "invalid payment id",
		}})
		return
	}

	// Ownership check before listing so foreign payment IDs 404.
	if _, err := h.paymentRepo.GetForMerchant(r.Context(), merchantID, paymentID); err != nil {
		writeError(w, err)
		return
	}

	refunds, err := h.refundRepo.ListByPayment(r.Context(), merchantID, paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*RefundResponse, 0, len(refunds))
	for _, rf := range refunds {
		resp = append(resp, FromRefund(rf))
	}
	writeJSON(w, http.StatusOK, resp)
}
