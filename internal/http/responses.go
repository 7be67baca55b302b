package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("response_encode_failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps checkout errors onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request_failed", zap.String("code", code), zap.Error(err))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	respondError(w, status, code, message)
}

func classifyError(err error) (int, string) {
	var rejected *domain.ProcessorRejectedError
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrMissingReturnURL):
		return http.StatusBadRequest, "missing_return_url"
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest, "invalid_cart"
	case errors.Is(err, domain.ErrInvalidPageSize):
		return http.StatusBadRequest, "invalid_page_size"
	case errors.Is(err, domain.ErrNoPendingCheckout):
		return http.StatusConflict, "no_pending_checkout"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, domain.ErrProcessorUnavailable):
		return http.StatusServiceUnavailable, "processor_unavailable"
	case errors.Is(err, domain.ErrPaymentCreationFailed):
		return http.StatusBadGateway, "payment_creation_failed"
	case errors.Is(err, domain.ErrPaymentExecutionFailed):
		return http.StatusBadGateway, "payment_execution_failed"
	case errors.Is(err, domain.ErrIntentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &rejected) && rejected.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrProcessorRejected):
		return http.StatusBadGateway, "processor_rejected"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
