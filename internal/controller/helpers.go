package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
	{domainErrors.ErrRefundNotFound, http.StatusNotFound, "REFUND_NOT_FOUND"},
	{domainErrors.ErrMerchantNotFound, http.StatusNotFound, "MERCHANT_NOT_FOUND"},
	{domainErrors.ErrAttemptNotFound, http.StatusNotFound, "WEBHOOK_ATTEMPT_NOT_FOUND"},
	{domainErrors.ErrInvalidPaymentState, http.StatusConflict, "INVALID_PAYMENT_STATE"},
	{domainErrors.ErrRefundLimitExceeded, http.StatusBadRequest, "REFUND_AMOUNT_EXCEEDS_LIMIT"},
	{domainErrors.ErrIdempotencyConflict, http.StatusConflict, "IDEMPOTENCY_CONFLICT"},
	{domainErrors.ErrIdempotencyInProgress, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS"},
	{domainErrors.ErrInvalidTransition, http.StatusConflict, "INVALID_STATE_TRANSITION"},
	{domainErrors.ErrAttemptSucceeded, http.StatusConflict, "WEBHOOK_ALREADY_DELIVERED"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domainErrors.ErrUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRaw writes pre-serialized response bytes. Idempotent replays must
// return the stored body byte for byte, so it never re-encodes.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:        "VALIDATION_ERROR",
			Description: validationErr.Error(),
		}})
		return
	}

	// A DomainError carries its own code and message; the sentinel it wraps
	// still decides the HTTP status.
	code, description := "", err.Error()
	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		description = domainErr.Message
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if code == "" {
				code = m.code
			}
			writeJSON(w, m.status, ErrorResponse{Error: ErrorBody{Code: code, Description: description}})
			return
		}
	}

	if domainErr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorBody{Code: code, Description: description}})
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Code:        "INTERNAL_ERROR",
		Description: "internal server error",
	}})
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
