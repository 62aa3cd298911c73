package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appPayment "github.com/rbarroso/clearway/internal/application/payment"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/middleware"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	createPayment *appPayment.CreatePaymentUseCase
	paymentRepo   payment.Repository
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	createPayment *appPayment.CreatePaymentUseCase,
	paymentRepo payment.Repository,
) *PaymentController {
	return &PaymentController{
		createPayment: createPayment,
		paymentRepo:   paymentRepo,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.createPayment.Execute(r.Context(), appPayment.CreatePaymentRequest{
		MerchantID:     merchantID,
		OrderRef:       req.OrderRef,
		Amount:         req.Amount,
		Method:         req.Method,
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

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.GetMerchantID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:        "VALIDATION_ERROR",
			Description: "invalid payment id",
		}})
		return
	}

	p, err := h.paymentRepo.GetForMerchant(r.Context(), merchantID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}
